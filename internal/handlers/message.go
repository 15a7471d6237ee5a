package handlers

import (
	"net/http"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles direct message requests
type MessageHandler struct {
	conversations *services.ConversationService
	directory     *services.DirectoryService
	maxUpload     int64
	enforceActor  bool
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	conversations *services.ConversationService,
	directory *services.DirectoryService,
	maxUpload int64,
	enforceActor bool,
) *MessageHandler {
	return &MessageHandler{
		conversations: conversations,
		directory:     directory,
		maxUpload:     maxUpload,
		enforceActor:  enforceActor,
	}
}

// SendMessageRequest represents the JSON body for sending a message
type SendMessageRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

// GetConversation handles GET /api/messages/{sender}/{receiver}. Messages
// the receiver sent to the sender are marked read.
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.conversations.GetConversation(r.Context(), chi.URLParam(r, "sender"), chi.URLParam(r, "receiver"))
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// UnreadCount handles GET /api/messages/unread/{username}
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.conversations.UnreadCount(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"count": count})
}

// SendMessage handles POST /api/messages/send as JSON or multipart with an
// optional "image" file
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		req   SendMessageRequest
		image *models.Attachment
	)

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			respondError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		req.Sender = r.FormValue("sender")
		req.Receiver = r.FormValue("receiver")
		req.Text = r.FormValue("text")

		var err error
		if image, err = readAttachment(r, "image"); err != nil {
			respondError(w, "Invalid image upload", http.StatusBadRequest)
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := checkActor(ctx, h.directory, h.enforceActor, req.Sender); err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	msg, err := h.conversations.Send(ctx, req.Sender, req.Receiver, req.Text, image)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"message": msg})
}
