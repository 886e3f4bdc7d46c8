package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agrigpt/chatclient/internal/audio"
	"github.com/agrigpt/chatclient/internal/speech"
	"github.com/agrigpt/chatclient/pkg/utils"
)

// Handler serves the backend wire contract over HTTP.
type Handler struct {
	svc *Service
}

// NewRouter wires the dev server routes. Text chat allows anonymous
// callers (the trial flow uses it); session CRUD and voice require a
// bearer token, checked for presence only.
func NewRouter(svc *Service) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", h.handleChat)
		api.Post("/voice", h.requireToken(h.handleVoice))
		api.Get("/chats", h.requireToken(h.handleListChats))
		api.Get("/chats/{chatID}", h.requireToken(h.handleGetChat))
		api.Delete("/chats/{chatID}", h.requireToken(h.handleDeleteChat))
	})

	return r
}

func (h *Handler) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) == "" {
			utils.RespondError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string  `json:"message"`
		ChatID  *string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	chatID := ""
	if payload.ChatID != nil {
		chatID = *payload.ChatID
	}

	if chatID == "" {
		lang := speech.DetectLanguage(payload.Message)
		session := h.svc.CreateSession(r.Context(), payload.Message, lang.Tag)
		chatID = session.ID
	}

	reply := cannedReply(payload.Message)

	if err := h.svc.AppendMessage(r.Context(), chatID, "user", payload.Message); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := h.svc.AppendMessage(r.Context(), chatID, "assistant", reply); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"reply":   reply,
		"chat_id": chatID,
	})
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	duration, err := audio.WAVDuration(data)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid audio: "+err.Error())
		return
	}

	userText := fmt.Sprintf("[voice message, %.1fs]", duration)
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"user_text": userText,
		"ai_reply":  cannedReply(userText),
	})
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.ListSessions(r.Context()))
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	messages, err := h.svc.History(r.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if err := h.svc.DeleteSession(r.Context(), chatID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

var cannedTips = []string{
	"अपनी मिट्टी की नमी नियमित रूप से जांचें। (Check your soil moisture regularly.)",
	"फसल चक्र अपनाने से मिट्टी की उर्वरता बनी रहती है। (Crop rotation keeps soil fertile.)",
	"सिंचाई सुबह या शाम के समय करें। (Irrigate in the morning or evening.)",
	"जैविक खाद का उपयोग मिट्टी के लिए अच्छा है। (Organic manure is good for the soil.)",
}

// cannedReply produces a deterministic stand-in for the AI reply.
func cannedReply(message string) string {
	sum := 0
	for _, r := range message {
		sum += int(r)
	}
	return cannedTips[sum%len(cannedTips)]
}
