//go:build !(simulated || serial)

package main

import (
	"log"
	"time"

	"github.com/netleapio/lora-gateway/sx126x"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

type radio struct {
	port spi.PortCloser
	dev  sx126x.Device
}

func (r *radio) Init(cfg *RadioSettings) error {
	_, err := host.Init()
	if err != nil {
		return err
	}

	r.port, err = spireg.Open("/dev/spidev0.0")
	if err != nil {
		return err
	}

	rst := gpioreg.ByName("GPIO18")
	busy := gpioreg.ByName("GPIO20")
	dio1 := gpioreg.ByName("GPIO16")

	r.dev, err = sx126x.New(r.port, rst, busy, dio1)
	if err != nil {
		return err
	}

	// Timestamp IRQs for latency diagnostics
	start := time.Now()
	sx126x.SetIrqClock(func() uint64 {
		return uint64(time.Since(start).Microseconds())
	})

	if !r.dev.Detect() {
		return sx126x.ErrNotDetected
	}

	err = r.dev.Configure(sx126x.Config{
		Frequency:       cfg.Frequency,
		SpreadingFactor: cfg.SpreadingFactor,
		Bandwidth:       cfg.Bandwidth,
	})
	if err != nil {
		return err
	}

	log.Printf("sx126x ready at %d Hz", cfg.Frequency)
	return nil
}

func (r *radio) Close() error {
	r.dev.Sleep()
	return r.port.Close()
}

// Rx listens for one frame.  Failures surface as the driver's typed
// errors; the caller decides what to count and when to re-listen.
func (r *radio) Rx(timeoutMs uint32, buf []byte) (int, *RxQuality, error) {
	pkt, err := r.dev.LoraRxPacket(timeoutMs)
	if err != nil {
		return 0, nil, err
	}

	n := copy(buf, pkt.Payload)
	return n, &RxQuality{RssiDbm: pkt.Rssi, SnrDb: pkt.Snr}, nil
}
