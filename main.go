package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/netleapio/lora-gateway/protocol"
	"github.com/netleapio/lora-gateway/sx126x"
)

func mainImpl() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	r := &radio{}
	if err := r.Init(&cfg.Radio); err != nil {
		return err
	}
	defer r.Close()

	manager := NewDeviceManager()
	manager.Start()

	mqtt := NewMQTTListener(&cfg.Mqtt)
	mqtt.Init(manager, cfg.Radio.Network)
	mqtt.Start()

	ws := NewWebSocketListener()
	ws.Init(manager)
	ws.Start()

	go startPrometheus()

	buf := make([]byte, 255)
	for {
		n, quality, err := r.Rx(cfg.Radio.RxTimeoutMs, buf)

		// Header and CRC failures are expected outcomes on a lossy
		// radio link: count them and listen again.  An unexpected
		// IRQ status means a driver or wiring bug and is reported
		// as loudly as we can short of giving up.
		switch {
		case err == nil:
			prometheusRecordOutcome("ok")

		case errors.Is(err, sx126x.ErrCrc):
			prometheusRecordOutcome("crc_error")
			log.Printf("dropped frame: %v", err)
			continue

		case errors.Is(err, sx126x.ErrHeader):
			prometheusRecordOutcome("header_error")
			log.Printf("dropped frame: %v", err)
			continue

		case errors.Is(err, sx126x.ErrTimeout):
			prometheusRecordOutcome("timeout")
			continue

		case errors.Is(err, sx126x.ErrUnexpectedIrq):
			prometheusRecordOutcome("unexpected")
			log.Printf("ERROR: unexpected radio status %v - possible driver bug", err)
			continue

		default:
			// Transport and OS level failures are fatal
			return err
		}

		rpt, err := protocol.ParseSensorReport(buf[:n])
		if err != nil {
			log.Printf("unparseable report: %v\n%s", err, hex.Dump(buf[:n]))
			continue
		}

		if rpt.NetworkID() != cfg.Radio.Network {
			continue
		}

		prometheusRecordSignal(rpt.NetworkID(), rpt.DeviceID(), quality)

		readings := rpt.AllReadings()
		prometheusRecordSensors(rpt.NetworkID(), rpt.DeviceID(),
			protocol.Value(protocol.SensorTypeTemperature, readings[protocol.SensorTypeTemperature]),
			protocol.Value(protocol.SensorTypeHumidity, readings[protocol.SensorTypeHumidity]),
			protocol.Value(protocol.SensorTypePressure, readings[protocol.SensorTypePressure]),
			protocol.Value(protocol.SensorTypeBattVolts, readings[protocol.SensorTypeBattVolts]))

		manager.DeviceSensorUpdate(rpt)
	}
}

func main() {
	fmt.Println("lora-gateway")

	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "lora-gateway: %s.\n", err)
		os.Exit(1)
	}
}
