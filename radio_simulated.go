//go:build simulated

package main

import (
	"errors"
	"net"
	"time"

	"github.com/netleapio/lora-gateway/sx126x"
)

const (
	srvAddr         = "224.0.0.1:9999"
	maxDatagramSize = 256
)

type radio struct {
	lc *net.UDPConn
	bc *net.UDPConn
}

func (r *radio) Init(cfg *RadioSettings) error {
	addr, err := net.ResolveUDPAddr("udp", srvAddr)
	if err != nil {
		return err
	}
	bc, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	r.bc = bc

	lc, err := net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	lc.SetReadBuffer(maxDatagramSize)
	r.lc = lc

	return nil
}

func (r *radio) Close() error {
	if r.lc != nil {
		r.lc.Close()
	}

	if r.bc != nil {
		r.bc.Close()
	}

	return nil
}

func (r *radio) Rx(timeoutMs uint32, buf []byte) (int, *RxQuality, error) {
	r.lc.SetReadDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))
	n, _, err := r.lc.ReadFromUDP(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, nil, sx126x.ErrTimeout
		}
		return 0, nil, err
	}
	return n, nil, nil
}
