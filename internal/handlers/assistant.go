package handlers

import (
	"net/http"

	"kissan-connect-backend/internal/services"
)

// AssistantHandler exposes translation and the farming assistant
type AssistantHandler struct {
	assistant *services.AssistantService
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistant *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// TranslateRequest represents the request body for a translation
type TranslateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"targetLang"`
}

// ChatRequest represents the request body for an assistant question
type ChatRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

// Translate handles POST /api/ai/translate
func (h *AssistantHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	translated, err := h.assistant.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		respondServiceError(w, r, err, services.MsgTranslationFailed)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"translatedText": translated})
}

// Chat handles POST /api/ai/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := h.assistant.Chat(r.Context(), req.Question, req.Language)
	if err != nil {
		respondServiceError(w, r, err, services.MsgAssistantOffline)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"answer": answer})
}
