package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splitledger/splitledger/internal/handler/dto"
	"github.com/splitledger/splitledger/internal/model"
	"github.com/splitledger/splitledger/internal/service"
)

// GroupHandler handles HTTP requests for groups and memberships.
type GroupHandler struct {
	svc    *service.GroupService
	logger *slog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(svc *service.GroupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/groups.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Members == nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Group name and members are required")
		return
	}

	g, err := h.svc.CreateGroup(r.Context(), service.CreateGroupInput{
		ActorID:      actor,
		Name:         req.Name,
		MemberEmails: *req.Members,
	})
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("group_created",
		"group_id", g.ID,
		"members", len(g.Members),
	)

	writeData(w, http.StatusCreated, dto.ToGroupResponse(g))
}

// List handles GET /api/v1/groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	groups, err := h.svc.ListMyGroups(r.Context(), actor)
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToGroupListResponse(groups))
}

// Get handles GET /api/v1/groups/{groupID}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	d, err := h.svc.GetGroup(r.Context(), actor, chi.URLParam(r, "groupID"))
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	writeData(w, http.StatusOK, dto.ToGroupDetailResponse(d, true))
}

// Delete handles DELETE /api/v1/groups/{groupID}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	groupID := chi.URLParam(r, "groupID")
	if err := h.svc.DeleteGroup(r.Context(), actor, groupID); err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("group_deleted", "group_id", groupID)

	writeData(w, http.StatusOK, dto.MessageResponse{Message: "Group and related notifications deleted"})
}

// Respond handles POST /api/v1/groups/{groupID}/respond.
func (h *GroupHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.RespondInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.svc.RespondInvite(r.Context(), service.RespondInviteInput{
		ActorID:        actor,
		GroupID:        chi.URLParam(r, "groupID"),
		NotificationID: req.NotificationID,
		Status:         model.MemberStatus(req.Status),
	})
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("invite_answered",
		"group_id", g.ID,
		"status", req.Status,
	)

	writeData(w, http.StatusOK, dto.ToGroupResponse(g))
}

// AddMember handles POST /api/v1/groups/{groupID}/members.
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.svc.AddMember(r.Context(), service.AddMemberInput{
		ActorID: actor,
		GroupID: chi.URLParam(r, "groupID"),
		Email:   req.Email,
	})
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("member_added", "group_id", g.ID)

	writeData(w, http.StatusCreated, dto.ToGroupResponse(g))
}

// RemoveMember handles DELETE /api/v1/groups/{groupID}/members/{memberID}.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	g, err := h.svc.RemoveMember(r.Context(), actor, chi.URLParam(r, "groupID"), chi.URLParam(r, "memberID"))
	if err != nil {
		handleServiceError(h.logger, w, err)
		return
	}

	h.logger.Info("member_removed", "group_id", g.ID)

	writeData(w, http.StatusOK, dto.ToGroupResponse(g))
}
