// Portions of this code are:
// Copyright 2013 The Gorilla WebSocket Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/queuectl/queuectl"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hub fans broadcast payloads out to all registered connections.
type hub struct {
	connections map[*connection]bool
	broadcast   chan []byte
	register    chan *connection
	unregister  chan *connection
}

var h = hub{
	connections: make(map[*connection]bool),
	broadcast:   make(chan []byte, 16),
	register:    make(chan *connection),
	unregister:  make(chan *connection),
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.connections[c] = true
		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.send)
			}
		case payload := <-h.broadcast:
			for c := range h.connections {
				select {
				case c.send <- payload:
				default:
					delete(h.connections, c)
					close(c.send)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// connection is a middleman between the websocket connection and the hub.
type connection struct {
	// The websocket connection.
	ws *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
	m    *queuectl.Manager
}

// readPump pumps messages from the websocket connection to the hub.
func (c *connection) readPump() {
	defer func() {
		h.unregister <- c
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		}
		err := c.ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway) {
				log.Printf("%v", err)
			}
			break
		}
		switch msg.Type {
		case "JOB_LOOKUP":
			var rsp struct {
				Type    string        `json:"type"`
				Message string        `json:"message,omitempty"`
				Job     *queuectl.Job `json:"job,omitempty"`
			}
			rsp.Type = "JOB_DETAILS"
			job, err := c.m.Lookup(msg.ID)
			if err != nil {
				rsp.Message = "Job cannot be found"
			} else {
				rsp.Job = job
			}
			payload, _ := json.Marshal(rsp)
			c.send <- payload
		case "DLQ_RETRY":
			var rsp struct {
				Type    string `json:"type"`
				Message string `json:"message,omitempty"`
				ID      string `json:"id"`
			}
			rsp.Type = "DLQ_RETRIED"
			rsp.ID = msg.ID
			if err := c.m.RetryDead(msg.ID); err != nil {
				rsp.Message = "Job not in DLQ"
			}
			payload, _ := json.Marshal(rsp)
			c.send <- payload
		}
	}
}

// write writes a message with the given message type and payload.
func (c *connection) write(mt int, payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(mt, payload)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

type wsserver struct {
	m *queuectl.Manager
}

// ServeHTTP handles websocket requests from the peer.
func (srv wsserver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	c := &connection{send: make(chan []byte, 256), ws: ws, m: srv.m}
	h.register <- c
	go c.writePump()
	c.readPump()
}
