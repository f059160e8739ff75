package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"discord-quiz-bot/internal/app"
	"github.com/gorilla/websocket"
)

// StatusSource reports live counters for the health endpoint.
type StatusSource interface {
	Active() int
}

// FeedHandler streams quiz activity to dashboards over websockets.
type FeedHandler struct {
	feed     *app.Feed
	sessions StatusSource
	logger   *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time
}

func NewFeedHandler(feed *app.Feed, sessions StatusSource, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:     feed,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

// Routes mounts the feed and health endpoints.
func (h *FeedHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/healthz", h.ServeHealth)
	return mux
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type helloPayload struct {
	GuildID string `json:"guildId,omitempty"`
}

type healthPayload struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"activeSessions"`
	Uptime         string `json:"uptime"`
}

// ServeHealth reports liveness and the number of running sessions.
func (h *FeedHandler) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthPayload{
		Status:         "ok",
		ActiveSessions: h.sessions.Active(),
		Uptime:         time.Since(h.started).Round(time.Second).String(),
	})
}

// ServeWS upgrades the request and forwards feed events, optionally filtered
// by the guildId query parameter. The feed is read-only; inbound frames are
// only read to notice the client going away.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guildId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if guildID != "" && ev.GuildID != guildID {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "event", Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "hello", Payload: helloPayload{GuildID: guildID}}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
