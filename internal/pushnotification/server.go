package pushnotification

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/sprintguild/internal/config"
	"github.com/kazz187/sprintguild/internal/pushsubscription"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	sender   *Sender
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, sender *Sender) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
		sender:   sender,
	}
}

func (s *Server) Register(r chi.Router) {
	r.Get("/push/vapid-key", s.getVapidPublicKey)
	r.Post("/push/subscriptions", s.registerSubscription)
	r.Delete("/push/subscriptions/{id}", s.unregisterSubscription)
	r.Post("/push/test", s.sendTestNotification)
}

func (s *Server) getVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(r.Context(), cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(r.Context(), map[string]string{"public_key": s.vapidEnv.VAPIDPublicKey})
}

type registerRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
	// SprintIDs limits notifications to these sprints. Empty watches all.
	SprintIDs []string `json:"sprint_ids"`
}

func (s *Server) registerSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := cerr.DecodeJSONRequest(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	switch {
	case req.Endpoint == "":
		cerr.SetJSONError(ctx, cerr.NewValidationError("endpoint", "endpoint.required", "endpoint is required"))
		return
	case req.P256dhKey == "":
		cerr.SetJSONError(ctx, cerr.NewValidationError("p256dh_key", "p256dh_key.required", "p256dh_key is required"))
		return
	case req.AuthKey == "":
		cerr.SetJSONError(ctx, cerr.NewValidationError("auth_key", "auth_key.required", "auth_key is required"))
		return
	}

	// Re-registering an endpoint refreshes its keys and watch list.
	existing, err := s.repo.FindByEndpoint(ctx, req.Endpoint)
	if err == nil {
		existing.P256dhKey = req.P256dhKey
		existing.AuthKey = req.AuthKey
		existing.SprintIDs = req.SprintIDs
		if err := s.repo.Update(ctx, existing); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		cerr.SetJSONResponse(ctx, map[string]string{"id": existing.ID})
		return
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}

	sub := &pushsubscription.Subscription{
		ID:        ulid.Make().String(),
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
		SprintIDs: req.SprintIDs,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, map[string]string{"id": sub.ID})
}

func (s *Server) unregisterSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		cerr.SetJSONError(r.Context(), err)
		return
	}
	cerr.SetJSONResponseWithStatus(r.Context(), http.StatusNoContent, nil)
}

func (s *Server) sendTestNotification(w http.ResponseWriter, r *http.Request) {
	delivered := s.sender.Send(r.Context(), &NotificationPayload{
		Title: "SprintGuild Test",
		Body:  "Push notifications are working!",
	})
	cerr.SetJSONResponse(r.Context(), map[string]int{"delivered": delivered})
}
