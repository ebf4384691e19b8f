package main

import (
	"encoding/json"
	"os"
)

type MQTTSettings struct {
	Broker          string `json:"broker"`
	Port            int    `json:"port"`
	User            string `json:"user"`
	Password        string `json:"password"`
	ClientID        string `json:"clientId"`
	DiscoveryPrefix string `json:"discoveryPrefix"`
}

type RadioSettings struct {
	// Frequency in Hz, mandatory for the hardware backend
	Frequency uint32 `json:"frequency"`

	SpreadingFactor uint8 `json:"spreadingFactor"`
	Bandwidth       int   `json:"bandwidth"`

	// SerialPort is used by the serial-modem backend only
	SerialPort string `json:"serialPort"`

	// Network this gateway serves; reports from other networks are
	// ignored
	Network uint16 `json:"network"`

	// RxTimeoutMs bounds each listen before re-arming
	RxTimeoutMs uint32 `json:"rxTimeoutMs"`
}

type Config struct {
	Mqtt  MQTTSettings  `json:"mqtt"`
	Radio RadioSettings `json:"radio"`
}

func LoadConfig() (*Config, error) {
	data, err := os.ReadFile("gateway.config")
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = json.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Radio.RxTimeoutMs == 0 {
		cfg.Radio.RxTimeoutMs = 120 * 1000
	}

	return cfg, nil
}
