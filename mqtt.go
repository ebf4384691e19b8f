package main

import (
	"fmt"
	"log"
	"strings"

	hassiomqtt "github.com/netleapio/lora-gateway/hassio-mqtt"
	"github.com/netleapio/lora-gateway/protocol"
)

var hassSensorMetadata = map[protocol.SensorType]struct {
	deviceClass string
	units       string
}{
	protocol.SensorTypeTemperature: {deviceClass: "temperature", units: "°C"},
	protocol.SensorTypeHumidity:    {deviceClass: "humidity", units: "%"},
	protocol.SensorTypePressure:    {deviceClass: "atmospheric_pressure", units: "Pa"},
	protocol.SensorTypeBattVolts:   {deviceClass: "voltage", units: "V"},
}

type mqttDevice struct {
	hassDevice   *hassiomqtt.Device
	hassEntities map[protocol.SensorType]*hassiomqtt.Sensor
}

type MQTTListener struct {
	network      uint16
	eventChannel chan DeviceChange
	mqtt         *hassiomqtt.Client
	manager      *DeviceManager
	devices      map[uint16]mqttDevice
}

func NewMQTTListener(cfg *MQTTSettings) *MQTTListener {
	client := hassiomqtt.NewClient(cfg.Broker, cfg.Port, cfg.ClientID, cfg.User, cfg.Password)
	if cfg.DiscoveryPrefix != "" {
		client.DiscoveryPrefix = cfg.DiscoveryPrefix
	}

	return &MQTTListener{
		eventChannel: make(chan DeviceChange, 10),
		mqtt:         client,
		devices:      map[uint16]mqttDevice{},
	}
}

func (l *MQTTListener) Init(manager *DeviceManager, network uint16) {
	l.network = network
	l.manager = manager
	manager.AddListener(l.eventChannel)
}

func (l *MQTTListener) Start() {
	l.mqtt.Start()

	go func() {
		for {
			change := <-l.eventChannel
			d := l.manager.GetDevice(change.DeviceID)
			if d == nil {
				l.removeDevice(change.DeviceID)
				continue
			} else if change.Changes&ChangeNewDevice != 0 {
				l.newDevice(d)
			}

			l.updateSensorStats(d)
		}
	}()
}

func (l *MQTTListener) newDevice(d *DeviceState) {
	dev, ok := l.devices[d.id]
	if !ok {
		deviceId := fmt.Sprintf("loragw_%d_%d", l.network, d.id)
		deviceName := fmt.Sprintf("LoRa Environment Sensor #%d", d.id)

		dev = mqttDevice{
			hassDevice: hassiomqtt.NewDevice(l.mqtt, fmt.Sprintf("%d", d.id), &hassiomqtt.DeviceModel{
				Identifiers:  []string{deviceId},
				Manufacturer: "Netleap",
				Model:        "LoRa Environment Sensor",
				Name:         deviceName,
				SerialNumber: fmt.Sprintf("%d", d.id),
			}),
			hassEntities: map[protocol.SensorType]*hassiomqtt.Sensor{},
		}

		for t := range d.sensors {
			md, ok := protocol.SensorMetadata[t]
			if !ok {
				continue
			}

			hassMd, ok := hassSensorMetadata[t]
			if !ok {
				continue
			}

			if _, ok := dev.hassEntities[t]; ok {
				continue
			}

			sensorId := fmt.Sprintf("%s_%s", deviceId, md.Name)

			s, err := hassiomqtt.NewSensor(dev.hassDevice, "sensor", sensorId, &hassiomqtt.SensorModel{
				EntityModel: hassiomqtt.EntityModel{
					DeviceClass:   hassMd.deviceClass,
					Name:          md.Name,
					ObjectID:      fmt.Sprintf("%s_%s", deviceId, hassMd.deviceClass),
					ValueTemplate: fmt.Sprintf("{{value_json.%s}}", hassMd.deviceClass),
				},
				SuggestedDisplayPrecision: 2,
				UnitOfMeasurement:         hassMd.units,
			})
			if err != nil {
				log.Printf("announcing %s: %v", sensorId, err)
				continue
			}
			dev.hassEntities[t] = s
		}

		// Register even when the first report carried no readings, so
		// later updates find the device
		l.devices[d.id] = dev
	}
}

func (l *MQTTListener) removeDevice(id uint16) {
	// Devices are left in HASS for when they come back; nothing to do
	delete(l.devices, id)
}

func (l *MQTTListener) updateSensorStats(d *DeviceState) {
	dev, ok := l.devices[d.id]
	if !ok {
		return
	}

	sb := strings.Builder{}
	sb.WriteString("{")
	prefix := ""
	for t, v := range d.sensors {
		hassMd, ok := hassSensorMetadata[t]
		if !ok {
			continue
		}

		sb.WriteString(fmt.Sprintf("%s\"%s\":%v", prefix, hassMd.deviceClass, protocol.Value(t, v)))
		prefix = ","
	}
	sb.WriteString("}")

	if err := dev.hassDevice.SendStatus(sb.String()); err != nil {
		log.Printf("publishing state for #%d: %v", d.id, err)
	}
}
