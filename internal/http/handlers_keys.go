package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/service"
)

// KeyManager is the owner-facing key registry. *service.APIKeyService satisfies it.
type KeyManager interface {
	Create(ctx context.Context, ownerID, name string) (*model.IssuedAPIKey, error)
	List(ctx context.Context, ownerID string) ([]*model.APIKey, error)
	Revoke(ctx context.Context, secret, ownerID string) error
	Status(ctx context.Context, key model.AuthenticatedKey, limiter *service.RateLimiter) model.KeyStatus
}

// KeyHandlers serves key management and key status.
type KeyHandlers struct {
	Svc     KeyManager
	Limiter *service.RateLimiter
	Logger  *slog.Logger
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// Create issues a key to the session owner. The body is optional.
// POST /api/v1/keys.
func (h *KeyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := GetSessionFromContext(r.Context())
	if !ok || !session.CanManageKeys() {
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "insufficient_permissions",
			Err:     errors.New("session cannot manage api keys"),
		})
		return
	}

	var req createKeyRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	issued, err := h.Svc.Create(r.Context(), session.OwnerID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrKeyLimitReached) {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "key_limit_reached",
				Err:     errors.New("maximum number of api keys reached"),
			})
			return
		}
		h.logError(r, "create api key failed", err)
		writeServiceError(w, err, "create_failed")
		return
	}
	WriteJSON(w, http.StatusCreated, issued)
}

// List returns the owner's keys with only their display suffix.
// GET /api/v1/keys.
func (h *KeyHandlers) List(w http.ResponseWriter, r *http.Request) {
	session, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	keys, err := h.Svc.List(r.Context(), session.OwnerID)
	if err != nil {
		h.logError(r, "list api keys failed", err)
		writeServiceError(w, err, "list_failed")
		return
	}
	if keys == nil {
		keys = []*model.APIKey{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// Revoke deactivates one of the owner's keys by its full secret. Unknown and
// foreign keys are both reported as not found.
// DELETE /api/v1/keys/{key}.
func (h *KeyHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	session, ok := GetSessionFromContext(r.Context())
	if !ok || !session.CanManageKeys() {
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "insufficient_permissions",
			Err:     errors.New("session cannot manage api keys"),
		})
		return
	}

	err := h.Svc.Revoke(r.Context(), chi.URLParam(r, "key"), session.OwnerID)
	switch {
	case errors.Is(err, service.ErrKeyNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("api key not found")})
	case err != nil:
		h.logError(r, "revoke api key failed", err)
		writeServiceError(w, err, "revoke_failed")
	default:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}

// Status reports the calling key's state and remaining quota. It does not
// count against the rate limit.
// GET /api/v1/keys/status.
func (h *KeyHandlers) Status(w http.ResponseWriter, r *http.Request) {
	key, ok := GetAPIKeyFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: string(service.KeyMissing),
			Err:     errors.New(service.KeyMissing.Message()),
		})
		return
	}
	WriteJSON(w, http.StatusOK, h.Svc.Status(r.Context(), *key, h.Limiter))
}

func (h *KeyHandlers) logError(r *http.Request, msg string, err error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(r.Context(), msg, "error", err)
}
