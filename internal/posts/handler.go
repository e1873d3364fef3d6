package posts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vterzic/postbin/internal/metrics"
	"github.com/vterzic/postbin/pkg"
)

// PostJSON is the wire representation of a post; the author
// is projected to a single display string.
type PostJSON struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

type PostsResponse struct {
	Posts []PostJSON `json:"posts"`
}

type newPostRequest struct {
	Author  Author `json:"author"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updatePostRequest struct {
	ID      string  `json:"id"`
	Author  *Author `json:"author"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}

type postsRepo interface {
	Add(ctx context.Context, post *Post) error
	Get(ctx context.Context, id primitive.ObjectID) (*Post, error)
	All(ctx context.Context) ([]*Post, error)
	Update(ctx context.Context, id primitive.ObjectID, fields UpdateFields) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Handler struct {
	repo    postsRepo
	metrics *metrics.Manager
}

func NewHandler(
	repo postsRepo,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/posts", handler.handleList).Methods("GET").Name("list-posts")
	router.HandleFunc("/posts", handler.handleNew).Methods("POST", "OPTIONS").Name("new-post")
	router.HandleFunc("/posts/{id}", handler.handleUpdate).Methods("PUT", "OPTIONS").Name("update-post")
	router.HandleFunc("/posts/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("delete-post")
}

func PostToJSON(post *Post) PostJSON {
	return PostJSON{
		ID:      post.ID.Hex(),
		Author:  post.Author.DisplayName(),
		Content: post.Content,
		Title:   post.Title,
		Created: post.Created,
	}
}

func (handler *Handler) handleNew(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var newPostReq newPostRequest
	if err := json.NewDecoder(r.Body).Decode(&newPostReq); err != nil {
		log.Errorf("new post, unmarshal json params: %s", err)
		http.Error(w, "add post failed", http.StatusBadRequest)
		return
	}

	if newPostReq.Title == "" {
		http.Error(w, "error, title empty", http.StatusBadRequest)
		return
	}
	if newPostReq.Content == "" {
		http.Error(w, "error, content empty", http.StatusBadRequest)
		return
	}
	if newPostReq.Author.Empty() {
		http.Error(w, "error, author empty", http.StatusBadRequest)
		return
	}

	newPost := &Post{
		Author:  newPostReq.Author,
		Title:   newPostReq.Title,
		Content: newPostReq.Content,
		Created: time.Now(),
	}

	if err := handler.repo.Add(r.Context(), newPost); err != nil {
		log.Errorf("add new post failed: %s", err)
		http.Error(w, "add new post failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterPostsCreated.Inc()
	log.Tracef("new post %s: [%s] added", newPost.ID.Hex(), newPost.Title)

	createdJson, err := json.Marshal(PostToJSON(newPost))
	if err != nil {
		log.Errorf("marshal created post error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, createdJson, http.StatusCreated)
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "PUT, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(w, "error, invalid id", http.StatusBadRequest)
		return
	}

	var updatePostReq updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&updatePostReq); err != nil {
		log.Errorf("update post, unmarshal json params: %s", err)
		http.Error(w, "update post failed", http.StatusBadRequest)
		return
	}

	if updatePostReq.ID != "" && updatePostReq.ID != id.Hex() {
		http.Error(w, "error, id mismatch", http.StatusBadRequest)
		return
	}

	err = handler.repo.Update(r.Context(), id, UpdateFields{
		Author:  updatePostReq.Author,
		Title:   updatePostReq.Title,
		Content: updatePostReq.Content,
	})
	switch {
	case errors.Is(err, ErrPostNotFound):
		http.Error(w, "error, post not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrUpdateFieldsEmpty), errors.Is(err, ErrPostAuthorEmpty):
		http.Error(w, "error, no valid fields to update", http.StatusBadRequest)
		return
	case err != nil:
		log.Errorf("update post %s failed: %s", id.Hex(), err)
		http.Error(w, "update post failed", http.StatusInternalServerError)
		return
	}

	log.Tracef("post %s updated", id.Hex())
	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "DELETE, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	vars := mux.Vars(r)
	id, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(w, "error, invalid id", http.StatusBadRequest)
		return
	}

	err = handler.repo.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ErrPostNotFound):
		// delete is idempotent for the caller
		log.Tracef("post %s not found, nothing deleted", id.Hex())
	case err != nil:
		log.Errorf("delete post %s: %s", id.Hex(), err)
		http.Error(w, "error, post not deleted, internal server error", http.StatusInternalServerError)
		return
	default:
		handler.metrics.CounterPostsDeleted.Inc()
		log.Tracef("post %s deleted", id.Hex())
	}

	w.WriteHeader(http.StatusNoContent)
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	allPosts, err := handler.repo.All(r.Context())
	if err != nil {
		log.Errorf("get all posts error: %s", err)
		http.Error(w, "get all posts error", http.StatusInternalServerError)
		return
	}

	postsResp := PostsResponse{
		Posts: make([]PostJSON, 0, len(allPosts)),
	}
	for _, post := range allPosts {
		postsResp.Posts = append(postsResp.Posts, PostToJSON(post))
	}

	postsRespJson, err := json.Marshal(postsResp)
	if err != nil {
		log.Errorf("marshal posts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, postsRespJson)
}
