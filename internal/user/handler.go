package user

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"group-chat/internal/apperr"
	myMiddleware "group-chat/internal/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		slog.Warn("register failed", "username", req.Username, "error", err)
		http.Error(w, "could not register", apperr.Status(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		slog.Error("user search failed", "error", err)
		http.Error(w, "search failed", apperr.Status(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

func (h *Handler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateImage(r.Context(), userID, req.ImageURL); err != nil {
		slog.Error("image update failed", "user_id", userID, "error", err)
		http.Error(w, "update failed", apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetHiddenWords(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	words, err := h.Service.HiddenWords(r.Context(), userID)
	if err != nil {
		slog.Error("hidden words read failed", "user_id", userID, "error", err)
		http.Error(w, "read failed", apperr.Status(err))
		return
	}
	if words == nil {
		words = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HiddenWordsPayload{Words: words})
}

func (h *Handler) PutHiddenWords(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req HiddenWordsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetHiddenWords(r.Context(), userID, req.Words); err != nil {
		slog.Error("hidden words update failed", "user_id", userID, "error", err)
		http.Error(w, "update failed", apperr.Status(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
