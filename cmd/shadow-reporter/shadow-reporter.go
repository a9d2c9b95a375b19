// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// shadow-reporter periodically reports CPU temperature and load to an
// IoT device shadow service over MQTT.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"
	"github.com/warthog618/apix/shadow"
	"github.com/warthog618/apix/sysmon"
)

// Service holds the environment configuration of the reporter.
type Service struct {
	Broker      string        `env:"SHADOW_BROKER,required" description:"MQTT broker URL, e.g. ssl://broker:8883"`
	DeviceID    string        `env:"SHADOW_DEVICE_ID,required" description:"device id known to the shadow service"`
	TopicPrefix string        `env:"SHADOW_TOPIC_PREFIX,optional,default=apix" description:"topic prefix served by the shadow service"`
	Key         string        `env:"SHADOW_KEY,optional,default=system" description:"shadow key the reports are published under"`
	Interval    time.Duration `env:"SHADOW_INTERVAL,optional,default=30s" description:"time between reports"`
	CACertFile  string        `env:"SHADOW_CA_CERT_FILE,optional" description:"broker CA certificate; enables TLS"`
	CertFile    string        `env:"SHADOW_CERT_FILE,optional" description:"device client certificate"`
	KeyFile     string        `env:"SHADOW_KEY_FILE,optional" description:"device client key"`
	LogLevel    string        `env:"LOG_LEVEL,optional,default=info" description:"log level: debug, info, warning, error"`
}

// Report is the state document published to the shadow.
type Report struct {
	Time        time.Time `json:"time"`
	CPUTemp     float64   `json:"cpu_temperature"`
	sysmon.Load           // flattened load averages
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		logrus.WithError(err).Fatal("configuration")
	}
	initLogger(service.LogLevel)
	log := logrus.WithField("device", service.DeviceID)

	pub, err := shadow.New(shadow.Config{
		Broker:     service.Broker,
		DeviceID:   service.DeviceID,
		Prefix:     service.TopicPrefix,
		CACertFile: service.CACertFile,
		CertFile:   service.CertFile,
		KeyFile:    service.KeyFile,
	})
	if err != nil {
		log.WithError(err).Fatal("connecting to shadow service")
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe := sysmon.New()
	ticker := time.NewTicker(service.Interval)
	defer ticker.Stop()

	// report immediately on startup, then on the interval.
	for {
		report(log, probe, pub, service.Key)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			log.Info("terminating")
			return
		}
	}
}

func report(log *logrus.Entry, probe *sysmon.Probe, pub *shadow.Publisher, key string) {
	r := Report{Time: time.Now().UTC()}
	var err error
	if r.CPUTemp, err = probe.CPUTemp(); err != nil {
		log.WithError(err).Warn("reading CPU temperature")
		return
	}
	if r.Load, err = probe.LoadAvg(); err != nil {
		log.WithError(err).Warn("reading load average")
		return
	}
	if err = pub.Publish(key, r); err != nil {
		log.WithError(err).Warn("publishing report")
		return
	}
	log.WithFields(logrus.Fields{
		"cpu_temperature": r.CPUTemp,
		"load_1m":         r.Load1,
	}).Info("reported")
}

func initLogger(level string) {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	logrus.SetFormatter(formatter)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
