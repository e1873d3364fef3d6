package posts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ postsRepo = (*repoMock)(nil)

type repoMock struct {
	Posts map[primitive.ObjectID]*Post
	mutex sync.Mutex
}

func newRepoMock() *repoMock {
	return &repoMock{
		Posts: make(map[primitive.ObjectID]*Post),
	}
}

func (r *repoMock) PostsCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.Posts)
}

func (r *repoMock) Add(_ context.Context, post *Post) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if post.Title == "" || post.Content == "" {
		return ErrPostTitleOrContentEmpty
	}
	if post.Author.Empty() {
		return ErrPostAuthorEmpty
	}

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Created.IsZero() {
		post.Created = time.Now()
	}

	if _, ok := r.Posts[post.ID]; ok {
		return errors.New("post exists already")
	}

	r.Posts[post.ID] = post
	return nil
}

func (r *repoMock) Get(_ context.Context, id primitive.ObjectID) (*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	post, ok := r.Posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (r *repoMock) All(_ context.Context) ([]*Post, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var allPosts []*Post
	for id := range r.Posts {
		allPosts = append(allPosts, r.Posts[id])
	}

	sort.Slice(allPosts, func(i, j int) bool {
		return allPosts[i].Created.After(allPosts[j].Created)
	})

	return allPosts, nil
}

func (r *repoMock) Update(_ context.Context, id primitive.ObjectID, fields UpdateFields) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if fields.Author == nil && fields.Title == "" && fields.Content == "" {
		return ErrUpdateFieldsEmpty
	}

	post, ok := r.Posts[id]
	if !ok {
		return ErrPostNotFound
	}

	if fields.Author != nil {
		if fields.Author.Empty() {
			return ErrPostAuthorEmpty
		}
		post.Author = *fields.Author
	}
	if fields.Title != "" {
		post.Title = fields.Title
	}
	if fields.Content != "" {
		post.Content = fields.Content
	}

	return nil
}

func (r *repoMock) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Posts[id]; !ok {
		return ErrPostNotFound
	}

	delete(r.Posts, id)
	return nil
}
