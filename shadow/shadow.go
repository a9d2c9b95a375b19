// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package shadow publishes device state reports to an IoT device shadow
// service over MQTT.
//
// The service keeps two sides for any given key: the request, which is
// transferred to the device, and the report, which is the device's
// answer.  Reports are published to
//
// 	<prefix>/<device-id>/twin/reports/<key>
//
// as JSON documents.
package shadow

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config describes the connection to the shadow service.
type Config struct {
	// Broker is the MQTT broker URL, e.g. ssl://broker:8883.
	Broker string
	// DeviceID identifies this device to the shadow service.
	DeviceID string
	// Prefix is the topic prefix the service serves.  Defaults to "apix".
	Prefix string
	// ClientID is the MQTT client id.  Defaults to the device id with a
	// random suffix, so a stale session from a previous run cannot
	// collide with this one.
	ClientID string
	// CACertFile is the X.509 certificate of the broker CA.
	// TLS is configured if it is set.
	CACertFile string
	// CertFile and KeyFile are the device's X.509 client certificate pair.
	CertFile string
	KeyFile  string
	// Timeout bounds connect and publish calls.  Defaults to 10s.
	Timeout time.Duration
}

// Publisher publishes reports for one device to the shadow service.
type Publisher struct {
	c        mqtt.Client
	prefix   string
	deviceID string
	timeout  time.Duration
	log      *logrus.Entry
}

// ErrPublishTimeout indicates the broker did not acknowledge a report
// within the configured timeout.
var ErrPublishTimeout = errors.New("publish timed out")

// New connects to the broker and returns a Publisher for the device.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("broker not configured")
	}
	if cfg.DeviceID == "" {
		return nil, errors.New("device id not configured")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "apix"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("%s-%s", cfg.DeviceID, uuid.New())
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout)
	if cfg.CACertFile != "" {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	p := &Publisher{
		c:        mqtt.NewClient(opts),
		prefix:   prefix,
		deviceID: cfg.DeviceID,
		timeout:  timeout,
		log:      logrus.WithField("device", cfg.DeviceID),
	}
	t := p.c.Connect()
	if !t.WaitTimeout(timeout) {
		// drop the client's network goroutines along with the attempt.
		p.c.Disconnect(0)
		return nil, fmt.Errorf("connecting to %s: timed out", cfg.Broker)
	}
	if err := t.Error(); err != nil {
		p.c.Disconnect(0)
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}
	p.log.WithField("broker", cfg.Broker).Info("connected")
	return p, nil
}

// Publish reports the state document under the given key.
func (p *Publisher) Publish(key string, report interface{}) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	t := p.c.Publish(reportTopic(p.prefix, p.deviceID, key), 1, false, payload)
	if !t.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	if err = t.Error(); err != nil {
		return err
	}
	p.log.WithField("key", key).Debug("report published")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.c.Disconnect(250)
}

func reportTopic(prefix, deviceID, key string) string {
	return prefix + "/" + deviceID + "/twin/reports/" + key
}

func newTLSConfig(cfg Config) (*tls.Config, error) {
	caCert, err := ioutil.ReadFile(cfg.CACertFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no CA certs found in %s", cfg.CACertFile)
	}
	tlsConfig := &tls.Config{RootCAs: pool}
	if cfg.CertFile != "" {
		crt, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{crt}
	}
	return tlsConfig, nil
}
