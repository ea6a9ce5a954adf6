package eventjournal

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/sprintguild/internal/eventbus"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

type Server struct {
	journal *Journal
}

func NewServer(journal *Journal) *Server {
	return &Server{journal: journal}
}

func (s *Server) Register(r chi.Router) {
	r.Get("/events/history", s.history)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			cerr.SetJSONError(ctx, cerr.NewValidationError("date", "date.format", "date must be YYYY-MM-DD"))
			return
		}
		date = d
	}
	events, err := s.journal.Read(ctx, date, eventbus.EventType(r.URL.Query().Get("type")))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"events": events})
}
