// Package protocol defines the over-the-air sensor report format used by
// the battery powered sensor nodes.
//
// Reports are small big-endian packets, well under the 255 byte LoRa
// payload limit:
//
//	[0]    version
//	[1:3]  network ID
//	[3:5]  device ID
//	[5:7]  alert bits
//	[7]    reading count
//	[8:]   readings, 3 bytes each: sensor type, value
//
// Values are fixed-point; SensorMetadata carries the scale factor per
// sensor type.  Integrity of the payload itself is the radio's job:
// by the time a report reaches this package the frame CRC has passed.
package protocol

import (
	"encoding/binary"
	"errors"
)

const Version = 1

const headerSize = 8

var (
	ErrTooShort   = errors.New("report too short")
	ErrBadVersion = errors.New("unsupported report version")
	ErrTruncated  = errors.New("report readings truncated")
)

type SensorType uint8

const (
	SensorTypeTemperature SensorType = 0x01
	SensorTypeHumidity    SensorType = 0x02
	SensorTypePressure    SensorType = 0x03
	SensorTypeBattVolts   SensorType = 0x04
)

// Metadata describes how to interpret a raw sensor value: the reported
// uint16 is multiplied by Mult and divided by Div to reach the unit.
type Metadata struct {
	Name string
	Mult int
	Div  int
}

var SensorMetadata = map[SensorType]Metadata{
	SensorTypeTemperature: {Name: "temperature", Mult: 1, Div: 100}, // °C
	SensorTypeHumidity:    {Name: "humidity", Mult: 1, Div: 10000},  // ratio
	SensorTypePressure:    {Name: "pressure", Mult: 10, Div: 1},     // Pa
	SensorTypeBattVolts:   {Name: "battery", Mult: 1, Div: 1000},    // V
}

// Alerts is the bitmask of conditions a node is flagging.
type Alerts uint16

const (
	AlertBatteryLow Alerts = 1 << iota
	AlertSensorFault
	AlertTamper
)

var alertNames = []struct {
	bit  Alerts
	name string
}{
	{AlertBatteryLow, "battery_low"},
	{AlertSensorFault, "sensor_fault"},
	{AlertTamper, "tamper"},
}

func (a Alerts) Strings() []string {
	s := []string{}
	for _, n := range alertNames {
		if a&n.bit != 0 {
			s = append(s, n.name)
		}
	}
	return s
}

// SensorReport is one decoded report packet.
type SensorReport struct {
	network  uint16
	device   uint16
	alerts   Alerts
	readings map[SensorType]uint16
}

func NewSensorReport(network, device uint16) *SensorReport {
	return &SensorReport{
		network:  network,
		device:   device,
		readings: map[SensorType]uint16{},
	}
}

func (r *SensorReport) NetworkID() uint16 { return r.network }

func (r *SensorReport) DeviceID() uint16 { return r.device }

func (r *SensorReport) Alerts() Alerts { return r.alerts }

func (r *SensorReport) SetAlerts(a Alerts) { r.alerts = a }

func (r *SensorReport) AddReading(t SensorType, value uint16) {
	r.readings[t] = value
}

// AllReadings returns the raw readings keyed by sensor type.  A node may
// send an incomplete set; absent types are simply missing from the map.
func (r *SensorReport) AllReadings() map[SensorType]uint16 {
	return r.readings
}

func (r *SensorReport) Marshal() []byte {
	buf := make([]byte, headerSize, headerSize+3*len(r.readings))
	buf[0] = Version
	binary.BigEndian.PutUint16(buf[1:], r.network)
	binary.BigEndian.PutUint16(buf[3:], r.device)
	binary.BigEndian.PutUint16(buf[5:], uint16(r.alerts))
	buf[7] = uint8(len(r.readings))

	for t, v := range r.readings {
		var rec [3]byte
		rec[0] = uint8(t)
		binary.BigEndian.PutUint16(rec[1:], v)
		buf = append(buf, rec[:]...)
	}

	return buf
}

func ParseSensorReport(data []byte) (*SensorReport, error) {
	if len(data) < headerSize {
		return nil, ErrTooShort
	}
	if data[0] != Version {
		return nil, ErrBadVersion
	}

	count := int(data[7])
	if len(data) < headerSize+3*count {
		return nil, ErrTruncated
	}

	r := NewSensorReport(
		binary.BigEndian.Uint16(data[1:]),
		binary.BigEndian.Uint16(data[3:]))
	r.alerts = Alerts(binary.BigEndian.Uint16(data[5:]))

	for i := 0; i < count; i++ {
		rec := data[headerSize+3*i:]
		r.readings[SensorType(rec[0])] = binary.BigEndian.Uint16(rec[1:])
	}

	return r, nil
}

// Value converts a raw reading to its unit using the sensor metadata.
func Value(t SensorType, raw uint16) float64 {
	md, ok := SensorMetadata[t]
	if !ok {
		return float64(raw)
	}
	return float64(raw) * float64(md.Mult) / float64(md.Div)
}
