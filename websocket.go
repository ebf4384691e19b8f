package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/netleapio/lora-gateway/protocol"
)

type jsonDeviceUpdate struct {
	DeviceID string
	Alerts   []string
	Sensors  map[string]float64
}

type WebSocket struct {
	eventChannel chan DeviceChange
	manager      *DeviceManager
	upgrader     websocket.Upgrader
}

func NewWebSocketListener() *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		eventChannel: make(chan DeviceChange, 10),
	}
}

func (ws *WebSocket) Init(manager *DeviceManager) {
	ws.manager = manager
	manager.AddListener(ws.eventChannel)
}

func (ws *WebSocket) Start() {
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}

		for {
			change := <-ws.eventChannel

			if change.Changes&ChangeDeviceUpdate == 0 {
				continue
			}

			device := ws.manager.GetDevice(change.DeviceID)
			if device == nil {
				continue
			}

			msg := jsonDeviceUpdate{
				DeviceID: strconv.Itoa(int(change.DeviceID)),
				Alerts:   device.alerts.Strings(),
				Sensors:  map[string]float64{},
			}

			for t, v := range device.sensors {
				md, ok := protocol.SensorMetadata[t]
				if !ok {
					continue
				}

				msg.Sensors[md.Name] = protocol.Value(t, v)
			}

			if err := conn.WriteJSON(msg); err != nil {
				break
			}
		}
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "websockets.html")
	})

	go http.ListenAndServe(":3456", nil)
}
