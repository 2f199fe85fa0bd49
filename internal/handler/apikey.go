package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/model"
)

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// AuthInvalidator drops cached auth contexts of a revoked key.
type AuthInvalidator interface {
	InvalidateKey(ctx context.Context, keyID string) error
}

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	logger      *slog.Logger
	keys        APIKeyStore
	invalidator AuthInvalidator
}

// NewAPIKeyHandler creates a new APIKeyHandler. invalidator may be nil.
func NewAPIKeyHandler(logger *slog.Logger, keys APIKeyStore, invalidator AuthInvalidator) *APIKeyHandler {
	return &APIKeyHandler{
		logger:      logger,
		keys:        keys,
		invalidator: invalidator,
	}
}

// CreateAPIKey handles POST /api/v1/api-keys
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	var req model.APIKeyCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	for _, scope := range req.Scopes {
		if !model.ValidScope(scope) {
			writeError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scope+". Valid scopes: "+strings.Join(model.ValidScopes, ", "))
			return
		}
	}

	// Keys may not grant more than the caller holds.
	caller := auth.AuthFromContext(ctx)
	for _, scope := range req.Scopes {
		if !caller.HasScope(scope) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Cannot grant scope: "+scope)
			return
		}
	}

	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead, model.ScopeWrite}
	}

	generatedKey, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to generate API key")
		return
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        userID,
		KeyHash:       generatedKey.Hash,
		KeyPrefix:     generatedKey.Prefix,
		Scopes:        req.Scopes,
		RateLimitTier: model.TierFree,
		Name:          req.Name,
		CreatedAt:     time.Now(),
	}

	if err := h.keys.CreateAPIKey(ctx, apiKey); err != nil {
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", apiKey.ID),
		slog.String("key_prefix", apiKey.KeyPrefix),
		slog.String("user_id", apiKey.UserID),
	)

	// The plaintext key is returned exactly once.
	writeData(w, http.StatusCreated, model.APIKeyCreateResponse{
		ID:            apiKey.ID,
		Key:           generatedKey.Plaintext,
		Name:          apiKey.Name,
		KeyPrefix:     apiKey.KeyPrefix,
		Scopes:        apiKey.Scopes,
		RateLimitTier: apiKey.RateLimitTier,
		CreatedAt:     apiKey.CreatedAt,
	})
}

// ListAPIKeys handles GET /api/v1/api-keys
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	keys, err := h.keys.ListAPIKeysByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to list API keys")
		return
	}

	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}

	writeData(w, http.StatusOK, responses)
}

// RevokeAPIKey handles DELETE /api/v1/api-keys/{keyID}
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	key, ok := h.ownedKey(w, r, userID)
	if !ok {
		return
	}

	if err := h.keys.RevokeAPIKey(ctx, key.ID); err != nil {
		h.logger.Error("failed to revoke API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to revoke API key")
		return
	}
	h.invalidate(ctx, key.ID)

	h.logger.Info("API key revoked",
		slog.String("key_id", key.ID),
		slog.String("user_id", userID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey handles POST /api/v1/api-keys/{keyID}/rotate
func (h *APIKeyHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := actorID(w, r)
	if !ok {
		return
	}

	oldKey, ok := h.ownedKey(w, r, userID)
	if !ok {
		return
	}

	generatedKey, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to generate API key")
		return
	}

	now := time.Now()
	newKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        oldKey.UserID,
		KeyHash:       generatedKey.Hash,
		KeyPrefix:     generatedKey.Prefix,
		Scopes:        oldKey.Scopes,
		RateLimitTier: oldKey.RateLimitTier,
		Name:          oldKey.Name,
		CreatedAt:     now,
	}

	// Create the replacement first so the caller is never left without a key.
	if err := h.keys.CreateAPIKey(ctx, newKey); err != nil {
		h.logger.Error("failed to create rotated API key", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to rotate API key")
		return
	}

	if err := h.keys.RevokeAPIKey(ctx, oldKey.ID); err != nil {
		h.logger.Error("failed to revoke old API key during rotation", slog.String("error", err.Error()))
	}
	h.invalidate(ctx, oldKey.ID)

	h.logger.Info("API key rotated",
		slog.String("old_key_id", oldKey.ID),
		slog.String("new_key_id", newKey.ID),
		slog.String("user_id", userID),
	)

	writeData(w, http.StatusCreated, model.APIKeyRotateResponse{
		OldKeyID:        oldKey.ID,
		OldKeyRevokedAt: now,
		NewKey: model.APIKeyCreateResponse{
			ID:            newKey.ID,
			Key:           generatedKey.Plaintext,
			Name:          newKey.Name,
			KeyPrefix:     newKey.KeyPrefix,
			Scopes:        newKey.Scopes,
			RateLimitTier: newKey.RateLimitTier,
			CreatedAt:     newKey.CreatedAt,
		},
	})
}

// ownedKey loads the active key named in the path. Foreign and revoked keys
// are reported as missing to prevent enumeration.
func (h *APIKeyHandler) ownedKey(w http.ResponseWriter, r *http.Request, userID string) (*model.APIKey, bool) {
	keyID := chi.URLParam(r, "keyID")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return nil, false
	}

	key, err := h.keys.GetAPIKeyByID(r.Context(), keyID)
	if err != nil || key.UserID != userID || key.IsRevoked() {
		writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
		return nil, false
	}
	return key, true
}

func (h *APIKeyHandler) invalidate(ctx context.Context, keyID string) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.InvalidateKey(ctx, keyID); err != nil {
		h.logger.Warn("failed to invalidate cached auth context",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}
