package handlers

import (
	"net/http"

	"kissan-connect-backend/internal/services"
)

// PostHandler handles the public feed
type PostHandler struct {
	postService *services.PostService
	maxUpload   int64
}

// NewPostHandler creates a new post handler
func NewPostHandler(postService *services.PostService, maxUpload int64) *PostHandler {
	return &PostHandler{
		postService: postService,
		maxUpload:   maxUpload,
	}
}

// ListPosts handles GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

// CreatePost handles POST /api/posts/create (multipart form)
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	req := services.CreatePostRequest{}

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			respondError(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		image, err := readAttachment(r, "image")
		if err != nil {
			respondError(w, "Invalid image upload", http.StatusBadRequest)
			return
		}
		req.Image = image
	} else if err := r.ParseForm(); err != nil {
		respondError(w, "Invalid form", http.StatusBadRequest)
		return
	}

	req.Content = r.FormValue("content")
	req.Username = r.FormValue("username")
	req.UserID = r.FormValue("user")
	req.Language = r.FormValue("language")
	req.Category = r.FormValue("category")

	post, err := h.postService.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"post": post})
}
