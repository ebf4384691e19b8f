package main

import (
	"testing"

	"github.com/netleapio/lora-gateway/protocol"
)

func TestDeviceManagerUpdate(t *testing.T) {
	m := NewDeviceManager()

	ch := make(chan DeviceChange, 1)
	m.AddListener(ch)

	rpt := protocol.NewSensorReport(1, 7)
	rpt.SetAlerts(protocol.AlertBatteryLow)
	rpt.AddReading(protocol.SensorTypeTemperature, 2000)
	m.DeviceSensorUpdate(rpt)

	d := m.GetDevice(7)
	if d == nil {
		t.Fatal("device not tracked after update")
	}
	if d.alerts != protocol.AlertBatteryLow {
		t.Errorf("alerts = %v", d.alerts)
	}
	if d.sensors[protocol.SensorTypeTemperature] != 2000 {
		t.Errorf("temperature = %d, want 2000", d.sensors[protocol.SensorTypeTemperature])
	}

	select {
	case change := <-ch:
		if change.DeviceID != 7 {
			t.Errorf("change for device %d, want 7", change.DeviceID)
		}
		if change.Changes&ChangeNewDevice == 0 {
			t.Error("first update did not flag a new device")
		}
	default:
		t.Error("listener not notified")
	}
}

func TestDeviceManagerPartialReadings(t *testing.T) {
	m := NewDeviceManager()

	full := protocol.NewSensorReport(1, 3)
	full.AddReading(protocol.SensorTypeTemperature, 2100)
	full.AddReading(protocol.SensorTypeBattVolts, 3200)
	m.DeviceSensorUpdate(full)

	// A partial update must not wipe previously seen readings
	partial := protocol.NewSensorReport(1, 3)
	partial.AddReading(protocol.SensorTypeTemperature, 2200)
	m.DeviceSensorUpdate(partial)

	d := m.GetDevice(3)
	if d.sensors[protocol.SensorTypeTemperature] != 2200 {
		t.Errorf("temperature = %d, want 2200", d.sensors[protocol.SensorTypeTemperature])
	}
	if d.sensors[protocol.SensorTypeBattVolts] != 3200 {
		t.Errorf("battery = %d, want 3200", d.sensors[protocol.SensorTypeBattVolts])
	}
}

func TestDeviceManagerUnknownDevice(t *testing.T) {
	m := NewDeviceManager()
	if d := m.GetDevice(99); d != nil {
		t.Errorf("GetDevice(99) = %v, want nil", d)
	}
}
