package protocol

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	r := NewSensorReport(3, 42)
	r.SetAlerts(AlertBatteryLow | AlertTamper)
	r.AddReading(SensorTypeTemperature, 2150) // 21.5 °C
	r.AddReading(SensorTypeBattVolts, 3300)   // 3.3 V

	got, err := ParseSensorReport(r.Marshal())
	if err != nil {
		t.Fatalf("ParseSensorReport: %v", err)
	}

	if got.NetworkID() != 3 || got.DeviceID() != 42 {
		t.Errorf("ids = %d/%d, want 3/42", got.NetworkID(), got.DeviceID())
	}
	if got.Alerts() != AlertBatteryLow|AlertTamper {
		t.Errorf("alerts = %v", got.Alerts())
	}

	readings := got.AllReadings()
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[SensorTypeTemperature] != 2150 {
		t.Errorf("temperature = %d, want 2150", readings[SensorTypeTemperature])
	}
	if readings[SensorTypeBattVolts] != 3300 {
		t.Errorf("battery = %d, want 3300", readings[SensorTypeBattVolts])
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := ParseSensorReport([]byte{1, 2, 3}); !errors.Is(err, ErrTooShort) {
		t.Errorf("short packet = %v, want ErrTooShort", err)
	}

	bad := NewSensorReport(0, 1).Marshal()
	bad[0] = 99
	if _, err := ParseSensorReport(bad); !errors.Is(err, ErrBadVersion) {
		t.Errorf("bad version = %v, want ErrBadVersion", err)
	}

	r := NewSensorReport(0, 1)
	r.AddReading(SensorTypeHumidity, 5000)
	trunc := r.Marshal()
	if _, err := ParseSensorReport(trunc[:len(trunc)-1]); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated = %v, want ErrTruncated", err)
	}
}

func TestAlertStrings(t *testing.T) {
	if got := Alerts(0).Strings(); len(got) != 0 {
		t.Errorf("no alerts = %v, want empty", got)
	}

	got := (AlertBatteryLow | AlertSensorFault).Strings()
	if len(got) != 2 || got[0] != "battery_low" || got[1] != "sensor_fault" {
		t.Errorf("alert names = %v", got)
	}
}

func TestValueScaling(t *testing.T) {
	cases := []struct {
		t    SensorType
		raw  uint16
		want float64
	}{
		{SensorTypeTemperature, 2150, 21.5},
		{SensorTypeHumidity, 4500, 0.45},
		{SensorTypePressure, 10132, 101320},
		{SensorTypeBattVolts, 3300, 3.3},
	}

	for _, c := range cases {
		if got := Value(c.t, c.raw); got != c.want {
			t.Errorf("Value(%d, %d) = %v, want %v", c.t, c.raw, got, c.want)
		}
	}
}
