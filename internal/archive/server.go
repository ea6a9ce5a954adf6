package archive

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) Register(r chi.Router) {
	r.Post("/tasks/{id}/archive", s.archive)
	r.Get("/archive", s.list)
	r.Get("/archive/{id}", s.get)
	r.Post("/archive/{id}/restore", s.restore)
	r.Delete("/archive/{id}", s.delete)
}

type archiveRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	t, err := s.service.Archive(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), t)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.service.List(r.Context(), Filter{
		Query:    q.Get("q"),
		Priority: task.Priority(q.Get("priority")),
		SprintID: q.Get("sprint_id"),
	})
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"tasks": tasks})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), t)
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), t)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusNoContent, nil)
}
