package hassiomqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Device groups entities under one status topic.
type Device struct {
	client      *Client
	id          string
	statusTopic string
	model       DeviceModel
}

func NewDevice(client *Client, id string, model *DeviceModel) *Device {
	return &Device{
		client:      client,
		id:          id,
		statusTopic: fmt.Sprintf("%s/%s/state", client.DiscoveryPrefix, id),
		model:       *model,
	}
}

// SendStatus publishes the current state payload for all of the
// device's entities to pick apart with their value templates.
func (d *Device) SendStatus(status interface{}) error {
	tok := d.client.Client.Publish(d.statusTopic, 0, false, status)
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", d.statusTopic)
	}

	return tok.Error()
}

// Sensor is one discoverable sensor entity.
type Sensor struct {
	device      *Device
	model       SensorModel
	component   string
	configTopic string
}

// NewSensor announces a sensor entity of the given device to Home
// Assistant.
func NewSensor(device *Device, component string, id string, model *SensorModel) (*Sensor, error) {
	s := &Sensor{
		device:      device,
		model:       *model,
		component:   component,
		configTopic: fmt.Sprintf("%s/%s/%s/%s/config", device.client.DiscoveryPrefix, component, device.client.id, id),
	}

	s.model.StateTopic = device.statusTopic
	s.model.UniqueID = id
	s.model.Device = &device.model

	if err := s.Announce(); err != nil {
		return nil, err
	}

	device.client.register(id, s)

	return s, nil
}

// Announce publishes the entity's discovery config.
func (s *Sensor) Announce() error {
	data, err := json.Marshal(s.model)
	if err != nil {
		return err
	}

	tok := s.device.client.Client.Publish(s.configTopic, 1, false, data)
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", s.configTopic)
	}
	return tok.Error()
}
