package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"kissan-connect-backend/internal/models"

	"github.com/rs/zerolog/hlog"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// respondJSON writes body with success:true merged in
func respondJSON(w http.ResponseWriter, statusCode int, body map[string]interface{}) {
	if body == nil {
		body = map[string]interface{}{}
	}
	body["success"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Success: false, Message: message})
}

// respondServiceError maps a service error to its status code. upstreamMsg
// is what callers see when the text-generation upstream failed.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, upstreamMsg string) {
	switch {
	case errors.Is(err, models.ErrNameTaken):
		respondError(w, "Name already taken", http.StatusConflict)
	case errors.Is(err, models.ErrInvalidOperation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrUnauthorized):
		respondError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, models.ErrNotFound):
		respondError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, models.ErrRateLimited):
		respondError(w, "Too many requests", http.StatusTooManyRequests)
	case errors.Is(err, models.ErrUpstream):
		hlog.FromRequest(r).Warn().Err(err).Msg("Upstream failure")
		respondError(w, upstreamMsg, http.StatusBadGateway)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// isMultipart reports whether r carries a multipart form
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readAttachment returns the uploaded file in field, or nil when absent
func readAttachment(r *http.Request, field string) (*models.Attachment, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return attachmentFrom(file, header)
}

func attachmentFrom(file multipart.File, header *multipart.FileHeader) (*models.Attachment, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &models.Attachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, nil
}
