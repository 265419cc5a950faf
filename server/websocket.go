package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
)

// WebSocket event names.
const (
	EventRequest  = "ai:request"
	EventResponse = "ai:response"
	EventError    = "ai:error"
)

// Event is one WebSocket frame. Replies echo the ID of the request.
type Event struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type eventError struct {
	Error string `json:"error"`
}

// handleWebSocket processes every ai:request concurrently and answers with
// ai:response or ai:error.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	log := s.logger.With().Str("client", clientID).Logger()
	log.Info().Msg("Client connected")

	ctx, cancel := context.WithCancel(r.Context())
	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	defer func() {
		cancel()
		wg.Wait()
		_ = conn.Close()
		log.Info().Msg("Client disconnected")
	}()

	send := func(ev Event) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			log.Warn().Err(err).Str("event", ev.Event).Msg("WebSocket write failed")
		}
	}

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("WebSocket read ended")
			}
			return
		}

		if ev.Event != EventRequest {
			send(errorEvent(ev.ID, "unsupported event "+ev.Event))
			continue
		}

		var req compute.Request
		if err := json.Unmarshal(ev.Data, &req); err != nil {
			send(errorEvent(ev.ID, "invalid request: "+err.Error()))
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := s.processor.Process(ctx, &req)
			if err != nil {
				send(errorEvent(id, err.Error()))
				return
			}
			data, err := json.Marshal(res)
			if err != nil {
				send(errorEvent(id, err.Error()))
				return
			}
			send(Event{Event: EventResponse, ID: id, Data: data})
		}(ev.ID)
	}
}

func errorEvent(id, msg string) Event {
	data, _ := json.Marshal(eventError{Error: msg})
	return Event{Event: EventError, ID: id, Data: data}
}
