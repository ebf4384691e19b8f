//go:build serial

package main

import (
	"io"

	"go.bug.st/serial"
)

type radio struct {
	port serial.Port
}

func (r *radio) Init(cfg *RadioSettings) error {
	p, err := serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return err
	}

	r.port = p

	return nil
}

// Rx reads one "PKT"-framed packet from the modem.  The modem firmware
// only forwards frames that passed the radio's integrity checks, so no
// quality stats or error kinds are available on this backend.
func (r *radio) Rx(timeoutMs uint32, buf []byte) (int, *RxQuality, error) {

	// len(marker) + len(len) + pkt
	hdr := make([]byte, 4)

	_, err := io.ReadAtLeast(r.port, hdr, 4)
	if err != nil {
		return 0, nil, err
	}

	// If not synchronized, wipe out the read buffer
	for hdr[0] != 'P' || hdr[1] != 'K' || hdr[2] != 'T' {
		r.port.ResetInputBuffer()

		_, err = io.ReadAtLeast(r.port, hdr, 4)
		if err != nil {
			return 0, nil, err
		}
	}

	pktlen := hdr[3]
	_, err = io.ReadAtLeast(r.port, buf, int(pktlen))
	if err != nil {
		return 0, nil, err
	}

	return int(pktlen), nil, nil
}

func (r *radio) Close() error {
	return r.port.Close()
}
