package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"group-chat/internal/apperr"
	myMiddleware "group-chat/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Words supplies a viewer's hidden-word list; the user service
// satisfies it.
type Words interface {
	HiddenWords(ctx context.Context, userID int) ([]string, error)
}

type Handler struct {
	hub     *Hub
	service *Service
	words   Words
}

func NewHandler(hub *Hub, service *Service, words Words) *Handler {
	return &Handler{
		hub:     hub,
		service: service,
		words:   words,
	}
}

// ServeStream upgrades a member's request into a live subscription.
// Unsubscribe is simply closing the connection; the pumps unregister
// the client and release the room slot.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	username, ok2 := r.Context().Value(myMiddleware.UsernameKey).(string)
	if !ok || !ok2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	groupID := chi.URLParam(r, "groupID")
	member, err := h.service.groups.IsMember(r.Context(), groupID, userID)
	if err != nil {
		writeError(w, "could not check membership", err)
		return
	}
	if !member {
		http.Error(w, "not a member of this group", http.StatusForbidden)
		return
	}

	hiddenWords, err := h.words.HiddenWords(r.Context(), userID)
	if err != nil {
		slog.Warn("hidden words load failed, streaming uncensored",
			"user_id", userID, "error", err)
		hiddenWords = nil
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		Hub:         h.hub,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		UserID:      userID,
		Username:    username,
		GroupID:     groupID,
		HiddenWords: hiddenWords,
		service:     h.service,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	username, ok2 := r.Context().Value(myMiddleware.UsernameKey).(string)
	if !ok || !ok2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := h.service.SendMessage(r.Context(), chi.URLParam(r, "groupID"), userID, username, req.Body)
	if err != nil {
		writeError(w, "could not send message", err)
		return
	}
	if m == nil {
		// Blank body: accepted and dropped.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.service.DeleteMessage(r.Context(),
		chi.URLParam(r, "groupID"), userID, chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, "could not delete message", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(myMiddleware.UserKey).(int)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.service.History(r.Context(), chi.URLParam(r, "groupID"), userID, limit)
	if err != nil {
		writeError(w, "could not load messages", err)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func writeError(w http.ResponseWriter, msg string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "error", err)
	}
	http.Error(w, msg, status)
}
