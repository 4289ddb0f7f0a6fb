package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/cjremmett/webtools/internal/bus"
)

const wsWriteTimeout = 5 * time.Second

var nextConnID atomic.Int64

// wsInbound is the wire shape of one chat request from a browser client.
type wsInbound struct {
	UserID  string `json:"userid"`
	ChatID  string `json:"chatid"`
	Message struct {
		Ticker  string `json:"ticker"`
		Year    int    `json:"year"`
		Quarter int    `json:"quarter"`
		Content string `json:"content"`
	} `json:"message"`
}

// wsOutbound is the inner event document. It is marshaled to JSON and that
// JSON string is marshaled again, so the client receives a quoted JSON
// string it must decode twice.
type wsOutbound struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[ws] accept error: %v", err)
		return
	}

	connID := fmt.Sprintf("ws-%d", nextConnID.Add(1))
	log.Printf("[ws] client connected: %s", connID)

	s.deps.Bus.SubscribeOutbound(connID, func(msg bus.OutboundMessage) {
		data, err := encodeOutbound(msg.Role, msg.Message)
		if err != nil {
			log.Printf("[ws] encode outbound for %s: %v", connID, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		defer cancel()
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			log.Printf("[ws] write to %s: %v", connID, err)
		}
	})

	defer func() {
		s.deps.Bus.UnsubscribeOutbound(connID)
		conn.CloseNow()
		log.Printf("[ws] client disconnected: %s", connID)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Printf("[ws] bad payload from %s: %v", connID, err)
			continue
		}
		if in.UserID == "" || in.ChatID == "" || in.Message.Content == "" {
			log.Printf("[ws] incomplete payload from %s, dropping", connID)
			continue
		}

		s.deps.Bus.Inbound <- bus.InboundMessage{
			ConnID:    connID,
			UserID:    in.UserID,
			ChatID:    in.ChatID,
			Ticker:    in.Message.Ticker,
			Year:      in.Message.Year,
			Quarter:   in.Message.Quarter,
			Content:   in.Message.Content,
			Timestamp: time.Now(),
		}
	}
}

// encodeOutbound double-encodes an event: the inner object becomes a JSON
// string, then that string is JSON-encoded again. The browser client decodes
// twice; changing this breaks it.
func encodeOutbound(role, message string) ([]byte, error) {
	inner, err := json.Marshal(wsOutbound{Role: role, Message: message})
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}
