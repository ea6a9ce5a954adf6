package eventstream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kazz187/sprintguild/internal/eventbus"
)

const heartbeatInterval = 30 * time.Second

// Server streams bus events to browsers as server-sent events.
type Server struct {
	eventBus  *eventbus.Bus
	heartbeat time.Duration
}

func NewServer(eventBus *eventbus.Bus) *Server {
	return &Server{eventBus: eventBus, heartbeat: heartbeatInterval}
}

// ServeHTTP handles GET /api/events. Optional query parameters:
//
//	types      comma-separated event types to keep
//	sprint_id  keep only events whose sprint_id metadata matches
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	typeFilter := make(map[eventbus.EventType]struct{})
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			typeFilter[eventbus.EventType(t)] = struct{}{}
		}
	}
	sprintID := r.URL.Query().Get("sprint_id")

	subID, ch := s.eventBus.Subscribe(64)
	defer s.eventBus.Unsubscribe(subID)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	slog.DebugContext(ctx, "event stream opened", "subscription_id", subID)
	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "event stream closed", "subscription_id", subID)
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if len(typeFilter) > 0 {
				if _, match := typeFilter[event.Type]; !match {
					continue
				}
			}
			if sprintID != "" {
				if id, ok := event.Metadata["sprint_id"]; ok && id != sprintID {
					continue
				}
			}
			if err := writeEvent(w, event); err != nil {
				slog.DebugContext(ctx, "event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event *eventbus.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
	return err
}
