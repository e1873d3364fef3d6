package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vterzic/postbin/internal/posts"
)

type postPayload struct {
	ID      string        `json:"id,omitempty"`
	Author  *posts.Author `json:"author,omitempty"`
	Title   string        `json:"title,omitempty"`
	Content string        `json:"content,omitempty"`
}

func (s *IntegrationTestSuite) getPosts(ctx context.Context) posts.PostsResponse {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET", fmt.Sprintf("%s/posts", serverEndpoint),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	require.Equal(s.T(), "application/json", resp.Header.Get("Content-Type"))
	defer resp.Body.Close()

	var postsResponse posts.PostsResponse
	require.NoError(s.T(),
		json.NewDecoder(resp.Body).Decode(&postsResponse),
	)

	return postsResponse
}

func (s *IntegrationTestSuite) newPostRequest(
	ctx context.Context,
	payload postPayload,
) posts.PostJSON {
	payloadJson, err := json.Marshal(payload)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"POST", fmt.Sprintf("%s/posts", serverEndpoint),
		bytes.NewReader(payloadJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	defer resp.Body.Close()

	var created posts.PostJSON
	require.NoError(s.T(),
		json.NewDecoder(resp.Body).Decode(&created),
	)
	require.NotEmpty(s.T(), created.ID)

	return created
}

func (s *IntegrationTestSuite) updatePostRequest(
	ctx context.Context,
	postID string,
	payload postPayload,
) (*http.Response, error) {
	payloadJson, err := json.Marshal(payload)
	require.NoError(s.T(), err)

	req, err := http.NewRequestWithContext(
		ctx,
		"PUT", fmt.Sprintf("%s/posts/%s", serverEndpoint, postID),
		bytes.NewReader(payloadJson),
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	return s.httpClient.Do(req)
}

func (s *IntegrationTestSuite) deletePostRequest(
	ctx context.Context,
	postID string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		"DELETE", fmt.Sprintf("%s/posts/%s", serverEndpoint, postID),
		nil,
	)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")

	return s.httpClient.Do(req)
}

func (s *IntegrationTestSuite) TestPosts() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.T().Run("create post and round trip", func(t *testing.T) {
		created := s.newPostRequest(ctx, postPayload{
			Author:  &posts.Author{FirstName: "Mika", LastName: "Mikic"},
			Title:   "test post 1",
			Content: "test content 1",
		})
		require.Equal(t, "Mika Mikic", created.Author)
		require.Equal(t, "test post 1", created.Title)
		require.Equal(t, "test content 1", created.Content)
		require.False(t, created.Created.IsZero())

		// the returned id is resolvable in the store
		id, err := primitive.ObjectIDFromHex(created.ID)
		require.NoError(t, err)
		storedPost, err := s.postsRepo.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "test post 1", storedPost.Title)
		require.Equal(t, "test content 1", storedPost.Content)
		require.Equal(t, "Mika Mikic", storedPost.Author.DisplayName())

		allPosts := s.getPosts(ctx)
		require.Equal(t, 1, len(allPosts.Posts))
		require.Equal(t, created.ID, allPosts.Posts[0].ID)
		require.Equal(t, created.Author, allPosts.Posts[0].Author)
		require.Equal(t, created.Title, allPosts.Posts[0].Title)
		require.Equal(t, created.Content, allPosts.Posts[0].Content)
	})

	s.T().Run("create post with missing fields", func(t *testing.T) {
		postsCountBefore := len(s.getPosts(ctx).Posts)

		for caseName, payload := range map[string]postPayload{
			"missing-title": {
				Author:  &posts.Author{FirstName: "Mika", LastName: "Mikic"},
				Content: "content without title",
			},
			"missing-content": {
				Author: &posts.Author{FirstName: "Mika", LastName: "Mikic"},
				Title:  "title without content",
			},
			"missing-author": {
				Title:   "title",
				Content: "content",
			},
		} {
			payloadJson, err := json.Marshal(payload)
			require.NoError(t, err)

			req, err := http.NewRequestWithContext(
				ctx,
				"POST", fmt.Sprintf("%s/posts", serverEndpoint),
				bytes.NewReader(payloadJson),
			)
			require.NoError(t, err)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set("Content-Type", "application/json")

			resp, err := s.httpClient.Do(req)
			require.NoError(t, err)
			assert.NoError(t, resp.Body.Close())
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, caseName)
		}

		// no partial writes happened
		allPosts := s.getPosts(ctx)
		require.Equal(t, postsCountBefore, len(allPosts.Posts))
	})
}

func (s *IntegrationTestSuite) TestPosts_Update() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created := s.newPostRequest(ctx, postPayload{
		Author:  &posts.Author{FirstName: "Pera", LastName: "Peric"},
		Title:   "original title",
		Content: "original content",
	})

	s.T().Run("update supplied fields only", func(t *testing.T) {
		resp, err := s.updatePostRequest(ctx, created.ID, postPayload{
			ID:      created.ID,
			Title:   "changed title",
			Content: "changed content",
		})
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Empty(t, respBytes)

		id, err := primitive.ObjectIDFromHex(created.ID)
		require.NoError(t, err)
		storedPost, err := s.postsRepo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "changed title", storedPost.Title)
		assert.Equal(t, "changed content", storedPost.Content)
		// id, author and created stay untouched
		assert.Equal(t, created.ID, storedPost.ID.Hex())
		assert.Equal(t, "Pera Peric", storedPost.Author.DisplayName())
		assert.WithinDuration(t, created.Created, storedPost.Created, time.Second)
	})

	s.T().Run("update with id mismatch", func(t *testing.T) {
		resp, err := s.updatePostRequest(ctx, created.ID, postPayload{
			ID:    primitive.NewObjectID().Hex(),
			Title: "should not pass",
		})
		require.NoError(t, err)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	s.T().Run("update unknown id", func(t *testing.T) {
		resp, err := s.updatePostRequest(ctx, primitive.NewObjectID().Hex(), postPayload{
			Title: "nobody home",
		})
		require.NoError(t, err)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func (s *IntegrationTestSuite) TestPosts_Delete() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created := s.newPostRequest(ctx, postPayload{
		Author:  &posts.Author{FirstName: "Zika", LastName: "Zikic"},
		Title:   "to be deleted",
		Content: "ephemeral content",
	})

	resp, err := s.deletePostRequest(ctx, created.ID)
	require.NoError(s.T(), err)
	assert.NoError(s.T(), resp.Body.Close())
	require.Equal(s.T(), http.StatusNoContent, resp.StatusCode)

	id, err := primitive.ObjectIDFromHex(created.ID)
	require.NoError(s.T(), err)
	_, err = s.postsRepo.Get(ctx, id)
	require.ErrorIs(s.T(), err, posts.ErrPostNotFound)

	// delete is idempotent - a repeated delete is still a success
	resp, err = s.deletePostRequest(ctx, created.ID)
	require.NoError(s.T(), err)
	assert.NoError(s.T(), resp.Body.Close())
	require.Equal(s.T(), http.StatusNoContent, resp.StatusCode)

	allPosts := s.getPosts(ctx)
	require.Empty(s.T(), allPosts.Posts)
}

func (s *IntegrationTestSuite) TestPosts_SeededListing() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	seeded := make([]*posts.Post, 0, 10)
	for i := 0; i < 10; i++ {
		seeded = append(seeded, &posts.Post{
			Author: posts.Author{
				FirstName: fmt.Sprintf("first%d", i),
				LastName:  fmt.Sprintf("last%d", i),
			},
			Title:   fmt.Sprintf("seeded post %d", i),
			Content: fmt.Sprintf("seeded content %d", i),
			Created: now.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(s.T(), s.postsRepo.InsertMany(ctx, seeded))

	allPosts := s.getPosts(ctx)
	require.GreaterOrEqual(s.T(), len(allPosts.Posts), 1)
	require.Equal(s.T(), 10, len(allPosts.Posts))

	// the content of the first element matches an independent find-by-id
	firstID, err := primitive.ObjectIDFromHex(allPosts.Posts[0].ID)
	require.NoError(s.T(), err)
	storedPost, err := s.postsRepo.Get(ctx, firstID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), storedPost.Content, allPosts.Posts[0].Content)

	// an arbitrary single document is also present in the listing
	anyPost, err := s.postsRepo.FindOne(ctx)
	require.NoError(s.T(), err)
	found := false
	for _, post := range allPosts.Posts {
		if post.ID == anyPost.ID.Hex() {
			found = true
			break
		}
	}
	require.True(s.T(), found)
}
