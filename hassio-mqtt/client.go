// Package hassiomqtt publishes devices and sensor entities to Home
// Assistant using its MQTT discovery convention.
//
// See: https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery
package hassiomqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	Client          mqtt.Client
	id              string
	DiscoveryPrefix string

	// entities is written during discovery and iterated from paho's
	// router goroutine when HASS restarts
	mu       sync.Mutex
	entities map[string]*Sensor
}

func NewClient(broker string, port int, clientId string, user string, password string) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(clientId)
	opts.SetUsername(user)
	opts.SetPassword(password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	c := &Client{
		id:              clientId,
		DiscoveryPrefix: "homeassistant",
		entities:        make(map[string]*Sensor),
	}

	c.Client = mqtt.NewClient(opts)
	return c
}

func (c *Client) register(id string, s *Sensor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[id] = s
}

// snapshot copies the entity registry so callers never iterate the live
// map while discovery is still adding to it.
func (c *Client) snapshot() map[string]*Sensor {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*Sensor, len(c.entities))
	for id, s := range c.entities {
		out[id] = s
	}
	return out
}

// Start connects in the background, retrying until the broker accepts,
// then watches Home Assistant's status topic: on restart HASS forgets
// discovered entities, so every known entity is re-announced.
func (c *Client) Start() {
	go func() {
		for !c.Client.IsConnected() {
			tok := c.Client.Connect()
			if !tok.WaitTimeout(time.Second) {
				log.Println("timeout connecting to MQTT broker, retrying")
				continue
			}
			if err := tok.Error(); err != nil {
				log.Printf("error connecting to MQTT broker: %v", err)
				time.Sleep(5 * time.Second)
			}
		}

		c.Client.Subscribe("homeassistant/status", 0, func(cl mqtt.Client, m mqtt.Message) {
			log.Println("hass status changed:", string(m.Payload()))

			for id, s := range c.snapshot() {
				if err := s.Announce(); err != nil {
					log.Printf("re-announcing %s: %v", id, err)
				}
			}
		})
	}()
}
