// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards decoder annotations to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

const publishTimeout = 5 * time.Second

// Message is the JSON body published for every annotation
type Message struct {
	Start    uint64 `json:"start"`
	End      uint64 `json:"end"`
	Category string `json:"category"`
	Long     string `json:"long"`
	Short    string `json:"short"`
}

// MQTTSink publishes annotations to <prefix>/<direction>/<field>.
// Publishing never blocks the decoder; failures are logged.
type MQTTSink struct {
	prefix  string
	publish func(topic string, payload []byte)
	log     zerolog.Logger
	client  mqtt.Client
}

// Dial connects to broker and returns a sink publishing under prefix
func Dial(broker, clientID, prefix string, log zerolog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout * 2) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s failed: %w", broker, err)
	}

	s := newSink(prefix, log, nil)
	s.client = client
	s.publish = func(topic string, payload []byte) {
		t := client.Publish(topic, 0, false, payload)
		go func() {
			if !t.WaitTimeout(publishTimeout) {
				log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
				return
			}
			if err := t.Error(); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
			}
		}()
	}
	log.Info().Str("broker", broker).Str("prefix", prefix).Msg("mqtt connected")
	return s, nil
}

func newSink(prefix string, log zerolog.Logger, publish func(string, []byte)) *MQTTSink {
	return &MQTTSink{prefix: prefix, publish: publish, log: log}
}

// Topic returns the topic an annotation is published to
func (s *MQTTSink) Topic(a espflash.Annotation) string {
	return fmt.Sprintf("%s/%s/%s", s.prefix, a.Category.Direction, a.Category.Field)
}

// Put implements espflash.Sink
func (s *MQTTSink) Put(a espflash.Annotation) {
	payload, err := json.Marshal(Message{
		Start:    a.Start,
		End:      a.End,
		Category: a.Category.String(),
		Long:     a.Long,
		Short:    a.Short,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode annotation")
		return
	}
	s.publish(s.Topic(a), payload)
}

// Close disconnects from the broker
func (s *MQTTSink) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}
