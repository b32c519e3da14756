/*
   signalroom - daily social post composer and intelligence pipeline
   Copyright (C) 2025  Unbewohnte (Kasyanov Nikolay Alexeevich)

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"signalroom/internal/domain"
	"signalroom/internal/logging"
	"signalroom/internal/notify"
)

const (
	MessageRunLog   = "run_log"
	MessagePost     = "post"
	MessageResponse = "response"
	MessageLog      = "log"

	writeWait = 10 * time.Second
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderMarkdown converts Markdown to HTML. Raw HTML in the input is
// dropped.
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderSlack renders a Slack formatted report as HTML.
func RenderSlack(text string) (string, error) {
	return RenderMarkdown(notify.SlackToMarkdown(text))
}

type WebMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type webClient struct {
	conn *websocket.Conn
	send chan WebMessage
}

// Hub fans live updates out to every connected dashboard.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*webClient]bool
	mu       sync.Mutex
	log      logging.Logger
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*webClient]bool),
		log:     log,
	}
}

// PublishRunLog is a ledger observer.
func (h *Hub) PublishRunLog(entry domain.RunLogEntry) {
	h.broadcast(WebMessage{Type: MessageRunLog, Data: entry})
}

// PublishPost is a lifecycle observer.
func (h *Hub) PublishPost(event domain.PostEvent) {
	h.broadcast(WebMessage{Type: MessagePost, Data: event})
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// serve upgrades the request and pumps messages until the client leaves.
// Commands the client sends go to onCommand.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, onCommand func(string) WebMessage) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &webClient{
		conn: conn,
		send: make(chan WebMessage, 256),
	}
	h.addClient(client)

	go client.writePump()
	go client.readPump(h, onCommand)
}

func (h *Hub) addClient(client *webClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.log.Debug("web client connected")
}

func (h *Hub) removeClient(client *webClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.log.Debug("web client disconnected")
	}
}

func (h *Hub) broadcast(msg WebMessage) {
	var slow []*webClient

	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.Unlock()

	for _, client := range slow {
		h.removeClient(client)
	}
}

func (c *webClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (c *webClient) readPump(h *Hub, onCommand func(string) WebMessage) {
	defer func() {
		h.removeClient(c)
		c.conn.Close()
	}()

	for {
		_, msgBytes, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg WebMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			continue
		}
		if msg.Type != "command" || onCommand == nil {
			continue
		}

		reply := onCommand(msg.Content)
		h.mu.Lock()
		if h.clients[c] {
			select {
			case c.send <- reply:
			default:
			}
		}
		h.mu.Unlock()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, func(cmd string) WebMessage {
		return s.runCommand(context.WithoutCancel(r.Context()), cmd)
	})
}

// runCommand passes a typed command to the console and renders the answer.
func (s *Server) runCommand(ctx context.Context, cmd string) WebMessage {
	cmd = strings.TrimSpace(cmd)
	if s.deps.Console == nil || cmd == "" {
		return WebMessage{Type: MessageLog, Content: "commands are not available"}
	}
	s.log.WithField("command", cmd).Info("web command")

	out, err := s.deps.Console.Run(ctx, cmd)
	if err != nil {
		return WebMessage{Type: MessageLog, Content: err.Error()}
	}

	rendered, err := RenderSlack(out)
	if err != nil {
		rendered = strings.ReplaceAll(out, "\n", "<br>")
	}
	return WebMessage{Type: MessageResponse, Content: rendered}
}
