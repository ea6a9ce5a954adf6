package execution

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/sprintguild/internal/executionlog"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) Register(r chi.Router) {
	r.Post("/sprints/{id}/executions", s.generatePrompt)
	r.Post("/sprints/{id}/executions/run", s.execute)
	r.Get("/sprints/{id}/executions", s.listLogs)
	r.Get("/executions/{id}", s.getLog)
	r.Delete("/executions/{id}", s.deleteLog)
	r.Post("/executions/{id}/response", s.submitResponse)
}

func (s *Server) generatePrompt(w http.ResponseWriter, r *http.Request) {
	l, err := s.service.GeneratePrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, l)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.Execute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), rec)
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.service.ListLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if logs == nil {
		logs = []*executionlog.Log{}
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"executions": logs})
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	l, err := s.service.GetLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), l)
}

func (s *Server) deleteLog(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteLog(r.Context(), chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusNoContent, nil)
}

type submitResponseRequest struct {
	Response string `json:"response"`
}

func (s *Server) submitResponse(w http.ResponseWriter, r *http.Request) {
	var req submitResponseRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	rec, err := s.service.SubmitResponse(r.Context(), chi.URLParam(r, "id"), req.Response)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), rec)
}
