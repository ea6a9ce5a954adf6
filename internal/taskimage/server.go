package taskimage

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/sprintguild/pkg/cerr"
)

// multipartOverhead is the allowance for form fields and boundaries on top
// of the image size limit.
const multipartOverhead = 1 << 20

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) Register(r chi.Router) {
	r.Post("/images", s.upload)
	r.Get("/tasks/{id}/images", s.listForTask)
	r.Delete("/images/{id}", s.remove)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "malformed upload", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		cerr.SetJSONError(ctx, cerr.NewValidationError("file", "file.required", "file is required"))
		return
	}
	defer file.Close()

	// Read one byte past the limit so oversize files are detected.
	data, err := io.ReadAll(io.LimitReader(file, s.service.MaxBytes()+1))
	if err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "failed to read upload", err)
		return
	}
	img, err := s.service.Upload(ctx, UploadInput{
		TaskID:   r.FormValue("task_id"),
		DraftKey: r.FormValue("draft_key"),
		FileName: header.Filename,
		Data:     data,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, img)
}

func (s *Server) listForTask(w http.ResponseWriter, r *http.Request) {
	images, err := s.service.ListForTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	if images == nil {
		images = []*Image{}
	}
	cerr.SetJSONResponse(r.Context(), map[string]any{"images": images})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusNoContent, nil)
}
