package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/engine"
	"github.com/amitsaini144/solagram/internal/model"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	engine       *engine.Engine
	errorHandler *ErrorHandler
	logger       *zap.Logger
	timeout      time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(eng *engine.Engine, errorHandler *ErrorHandler, logger *zap.Logger, timeout time.Duration) *Handlers {
	return &Handlers{
		engine:       eng,
		errorHandler: errorHandler,
		logger:       logger,
		timeout:      timeout,
	}
}

// createPostRequest is the POST /v1/posts body.
type createPostRequest struct {
	Content string `json:"content"`
}

// createCommentRequest is the POST /v1/posts/{address}/comments body.
type createCommentRequest struct {
	Content string `json:"content"`
}

// upsertProfileRequest is the PUT /v1/profile body.
type upsertProfileRequest struct {
	Handle    string `json:"handle"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// Feed handles GET /v1/feed requests.
func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	posts, err := h.engine.Feed(ctx)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, toPostList(posts))
}

// Profile handles GET /v1/profiles/{identity} requests.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	owner, err := pathIdentity(r, "identity")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.engine.Profile(ctx, owner)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if !res.Found {
		h.errorHandler.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, "no profile exists for this identity", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, toProfileJSON(res.View))
}

// PostsByCreator handles GET /v1/profiles/{identity}/posts requests.
func (h *Handlers) PostsByCreator(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	creator, err := pathIdentity(r, "identity")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	posts, err := h.engine.PostsByCreator(ctx, creator)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, toPostList(posts))
}

// Comments handles GET /v1/posts/{address}/comments requests.
func (h *Handlers) Comments(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	post, err := pathAddress(r, "address")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	comments, err := h.engine.Comments(ctx, post)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, toCommentList(comments))
}

// CreatePost handles POST /v1/posts requests.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addr, tx, err := h.engine.CreatePost(ctx, req.Content)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, WriteResponse{
		Status:  "ok",
		Address: addr.String(),
		Tx:      string(tx),
	})
}

// CreateComment handles POST /v1/posts/{address}/comments requests.
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	post, err := pathAddress(r, "address")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addr, tx, err := h.engine.CreateComment(ctx, post, req.Content)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, WriteResponse{
		Status:  "ok",
		Address: addr.String(),
		Tx:      string(tx),
	})
}

// LikePost handles POST /v1/posts/{address}/like requests.
func (h *Handlers) LikePost(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	post, err := pathAddress(r, "address")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.engine.LikePost(ctx, post)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, WriteResponse{Status: "ok", Tx: string(tx)})
}

// DeletePost handles DELETE /v1/posts/{address} requests.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	post, err := pathAddress(r, "address")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.engine.DeletePost(ctx, post)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, WriteResponse{Status: "ok", Tx: string(tx)})
}

// UpsertProfile handles PUT /v1/profile requests.
func (h *Handlers) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.WriteValidationError(w, "invalid request body: "+err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.engine.UpsertProfile(ctx, req.Handle, req.Bio, req.AvatarURL)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, WriteResponse{Status: "ok", Tx: string(tx)})
}

// Follow handles POST /v1/follows/{identity} requests.
func (h *Handlers) Follow(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	target, err := pathIdentity(r, "identity")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.engine.Follow(ctx, target)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, WriteResponse{Status: "ok", Tx: string(tx)})
}

// Unfollow handles DELETE /v1/follows/{identity} requests.
func (h *Handlers) Unfollow(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	target, err := pathIdentity(r, "identity")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.engine.Unfollow(ctx, target)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, WriteResponse{Status: "ok", Tx: string(tx)})
}

// FollowStatus handles GET /v1/follows/{identity} requests.
func (h *Handlers) FollowStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	target, err := pathIdentity(r, "identity")
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	following, err := h.engine.FollowStatus(ctx, target)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, FollowStatusResponse{
		Target:    target.String(),
		Following: following,
	})
}

// Session handles GET /v1/session requests.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.engine.Actor()

	resp := SessionResponse{Connected: ok}
	if ok {
		resp.Actor = actor.String()
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// pathIdentity parses a 0x-hex identity path variable.
func pathIdentity(r *http.Request, name string) (model.Identity, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return model.Identity{}, fmt.Errorf("missing %s path parameter", name)
	}
	return model.ParseIdentity(raw)
}

// pathAddress parses a 0x-hex address path variable.
func pathAddress(r *http.Request, name string) (model.Address, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return model.Address{}, fmt.Errorf("missing %s path parameter", name)
	}
	return model.ParseAddress(raw)
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
