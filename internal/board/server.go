package board

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/sprintguild/internal/sprint"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

type Server struct {
	engine *Engine
}

func NewServer(engine *Engine) *Server {
	return &Server{engine: engine}
}

func (s *Server) Register(r chi.Router) {
	r.Get("/board", s.listColumns)
	r.Get("/sprints", s.listSprints)
	r.Post("/sprints", s.createSprint)
	r.Patch("/sprints/{id}", s.updateSprint)
	r.Post("/sprints/{id}/move", s.moveSprint)
	r.Post("/sprints/{id}/tasks", s.addTask)
	r.Patch("/tasks/{id}", s.editTask)
	r.Post("/tasks/{id}/move", s.moveTask)
}

func (s *Server) listColumns(w http.ResponseWriter, r *http.Request) {
	columns, err := s.engine.ListColumns(r.Context())
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"columns": columns})
}

func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	includeHidden, _ := strconv.ParseBool(r.URL.Query().Get("include_hidden"))
	sprints, err := s.engine.ListSprints(r.Context(), includeHidden)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"sprints": sprints})
}

type createSprintRequest struct {
	Name   string        `json:"name"`
	Status sprint.Status `json:"status"`
}

func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	var req createSprintRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	sp, err := s.engine.CreateSprint(r.Context(), req.Name, req.Status)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, sp)
}

type updateSprintRequest struct {
	Name   *string        `json:"name"`
	Status *sprint.Status `json:"status"`
	Hidden *bool          `json:"hidden"`
}

func (s *Server) updateSprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	var req updateSprintRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	var (
		sp  *sprint.Sprint
		err error
	)
	if req.Name != nil {
		if sp, err = s.engine.RenameSprint(ctx, id, *req.Name); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	if req.Status != nil {
		if sp, err = s.engine.SetSprintStatus(ctx, id, *req.Status); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	if req.Hidden != nil {
		if sp, err = s.engine.SetSprintHidden(ctx, id, *req.Hidden); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	if sp == nil {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "nothing to update", nil))
		return
	}
	cerr.SetJSONResponse(ctx, sp)
}

type moveRequest struct {
	TargetSprintID string `json:"target_sprint_id"`
	TargetIndex    *int   `json:"target_index"`
}

func (s *Server) moveSprint(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if req.TargetIndex == nil {
		cerr.SetJSONError(r.Context(), cerr.NewValidationError("target_index", "target_index.required", "target_index is required"))
		return
	}
	sprints, err := s.engine.MoveSprint(r.Context(), chi.URLParam(r, "id"), *req.TargetIndex)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"sprints": sprints})
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	var fields TaskFields
	if err := cerr.DecodeJSONRequest(r, &fields); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	t, err := s.engine.AddTask(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusCreated, t)
}

func (s *Server) editTask(w http.ResponseWriter, r *http.Request) {
	var in EditTaskInput
	if err := cerr.DecodeJSONRequest(r, &in); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	t, err := s.engine.EditTask(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), t)
}

func (s *Server) moveTask(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if req.TargetSprintID == "" {
		cerr.SetJSONError(r.Context(), cerr.NewValidationError("target_sprint_id", "target_sprint_id.required", "target_sprint_id is required"))
		return
	}
	if req.TargetIndex == nil {
		cerr.SetJSONError(r.Context(), cerr.NewValidationError("target_index", "target_index.required", "target_index is required"))
		return
	}
	res, err := s.engine.MoveTask(r.Context(), chi.URLParam(r, "id"), req.TargetSprintID, *req.TargetIndex)
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponse(r.Context(), res)
}
