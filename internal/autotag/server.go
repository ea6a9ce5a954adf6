package autotag

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/sprintguild/pkg/cerr"
)

type Server struct {
	tagger *Tagger
}

func NewServer(tagger *Tagger) *Server {
	return &Server{tagger: tagger}
}

func (s *Server) Register(r chi.Router) {
	r.Post("/autotag", s.preview)
	r.Get("/autotag/rules", s.rules)
}

type previewRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"tags": s.tagger.Tag(req.Title, req.Description)})
}

func (s *Server) rules(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), map[string]any{"rules": s.tagger.Rules()})
}
