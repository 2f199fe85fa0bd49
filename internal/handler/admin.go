package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/splitledger/splitledger/internal/handler/dto"
	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/repository"
)

// AdminUserStore provisions and looks up users.
type AdminUserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// AdminKeyLister defines the interface for listing API keys.
type AdminKeyLister interface {
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
}

// UserCacheInvalidator drops cached lookups for an email.
type UserCacheInvalidator interface {
	DeleteUser(ctx context.Context, email string) error
}

// PresenceCounter reports how many users hold a live connection.
type PresenceCounter interface {
	Count() int
}

// AdminHandler provides admin-only endpoints for provisioning and operations.
type AdminHandler struct {
	users    AdminUserStore
	keys     AdminKeyLister
	presence PresenceCounter
	cache    UserCacheInvalidator
	started  time.Time
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. presence and cache may be nil.
func NewAdminHandler(users AdminUserStore, keys AdminKeyLister, presence PresenceCounter, cache UserCacheInvalidator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		users:    users,
		keys:     keys,
		presence: presence,
		cache:    cache,
		started:  time.Now(),
		logger:   logger,
	}
}

// CreateUser handles POST /api/v1/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email := model.NormalizeEmail(req.Email)
	if err := middleware.ValidateEmail(email); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "A valid email is required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := middleware.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	user := &model.User{
		ID:        ulid.Make().String(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			writeError(w, http.StatusConflict, "CONFLICT", "Email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to create user")
		return
	}

	if h.cache != nil {
		if err := h.cache.DeleteUser(ctx, user.Email); err != nil {
			h.logger.Warn("failed to clear cached user lookup", "error", err)
		}
	}

	h.logger.Info("user_created", "user_id", user.ID)

	writeData(w, http.StatusCreated, user)
}

// LookupUser handles GET /api/v1/admin/users?email={email}.
func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	email := model.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "query parameter 'email' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to look up user")
		return
	}

	writeData(w, http.StatusOK, user)
}

// ListAPIKeysByUser handles GET /api/v1/admin/api-keys?user_id={id}
func (h *AdminHandler) ListAPIKeysByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "query parameter 'user_id' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	keys, err := h.keys.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list API keys",
			"error", err,
			"user_id", userID,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to list API keys")
		return
	}

	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}

	writeData(w, http.StatusOK, responses)
}

// StatsResponse represents operational statistics.
type StatsResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Uptime      string    `json:"uptime"`
	OnlineUsers int       `json:"online_users"`
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Timestamp: time.Now().UTC(),
		Service:   "splitledger",
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	if h.presence != nil {
		resp.OnlineUsers = h.presence.Count()
	}
	writeData(w, http.StatusOK, resp)
}
