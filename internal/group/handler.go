package group

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"group-chat/internal/apperr"
	myMiddleware "group-chat/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createGroupRequest struct {
	Name      string `json:"name"`
	MemberIDs []int  `json:"member_ids"`
	ImageURL  string `json:"image_url,omitempty"`
}

type createGroupResponse struct {
	GroupID string `json:"group_id"`
}

type membersRequest struct {
	MemberIDs []int `json:"member_ids"`
}

type updateGroupRequest struct {
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateGroup(r.Context(), requesterID, req.Name, req.MemberIDs, req.ImageURL)
	if err != nil {
		writeError(w, "could not create group", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createGroupResponse{GroupID: id})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	g, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "groupID"), requesterID)
	if err != nil {
		writeError(w, "could not load group", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.UpdateGroup(r.Context(), chi.URLParam(r, "groupID"), requesterID, req.Name, req.ImageURL)
	if err != nil {
		writeError(w, "could not update group", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.DeleteGroup(r.Context(), chi.URLParam(r, "groupID"), requesterID); err != nil {
		writeError(w, "could not delete group", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req membersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.AddMembers(r.Context(), chi.URLParam(r, "groupID"), requesterID, req.MemberIDs)
	if err != nil {
		writeError(w, "could not add members", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	targetID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	err = h.service.RemoveMember(r.Context(), chi.URLParam(r, "groupID"), requesterID, targetID)
	if err != nil {
		writeError(w, "could not remove member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.LeaveGroup(r.Context(), chi.URLParam(r, "groupID"), requesterID); err != nil {
		writeError(w, "could not leave group", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUserGroups serves a user's own denormalized index; you can only
// list your own memberships.
func (h *Handler) ListUserGroups(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if userID != requesterID {
		http.Error(w, "can only list your own groups", http.StatusForbidden)
		return
	}

	entries, err := h.service.ListUserGroups(r.Context(), userID)
	if err != nil {
		writeError(w, "could not list groups", err)
		return
	}
	if entries == nil {
		entries = []ListEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *Handler) ReconcileUserGroups(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if userID != requesterID {
		http.Error(w, "can only rebuild your own index", http.StatusForbidden)
		return
	}

	entries, err := h.service.ReconcileUserGroups(r.Context(), userID)
	if err != nil {
		writeError(w, "could not rebuild index", err)
		return
	}
	if entries == nil {
		entries = []ListEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func requester(r *http.Request) (int, bool) {
	id, ok := r.Context().Value(myMiddleware.UserKey).(int)
	return id, ok
}

func writeError(w http.ResponseWriter, msg string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "error", err)
	}
	http.Error(w, msg, status)
}
