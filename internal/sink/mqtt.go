package sink

import (
	"context"
	"encoding/json"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

// MQTT publishes each reading as a JSON document to a single topic, so a
// dashboard elsewhere on the network can follow the freezer without polling
// this host.
type MQTT struct {
	client mqtt.Client
	topic  string
}

type mqttPayload struct {
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
	Alert     bool               `json:"alert"`
	Sentinel  bool               `json:"sentinel,omitempty"`
}

// NewMQTT connects to the broker. Auto-reconnect is left on so a broker
// restart does not permanently kill the sink.
func NewMQTT(broker, topic, clientID string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(errors.ErrInitFailed, token.Error())
	}

	return &MQTT{client: client, topic: topic}, nil
}

func (m *MQTT) Name() string {
	return "mqtt"
}

func (m *MQTT) Publish(_ context.Context, r sensor.Reading) error {
	payload := mqttPayload{
		Source:    r.Source,
		Timestamp: r.Time.Format(time.RFC3339),
		Values:    make(map[string]float64, len(r.Values)),
		Alert:     r.Alert,
		Sentinel:  r.Sentinel,
	}
	// NaN is not representable in JSON; sentinel readings publish an empty
	// values object plus the sentinel flag.
	for q, v := range r.Values {
		if !math.IsNaN(v) {
			payload.Values[q] = v
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}

	token := m.client.Publish(m.topic, 0, false, data)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.WithMessage(errors.ErrSinkFailure, "mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}

	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
