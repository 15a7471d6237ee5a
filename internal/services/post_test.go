package services

import (
	"context"
	"testing"

	"kissan-connect-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePostDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "1", "alice")

	post, err := f.posts.Create(ctx, CreatePostRequest{Username: "alice", Content: " drip irrigation tips "})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, post.UserID)
	assert.Equal(t, "drip irrigation tips", post.Content)
	assert.Equal(t, "en", post.Language)
	assert.Nil(t, post.Category)
	assert.Nil(t, post.Image)
}

func TestCreatePostWithImageAndCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "1", "alice")

	post, err := f.posts.Create(ctx, CreatePostRequest{
		Username: "alice",
		UserID:   alice.ID,
		Content:  "मल्चिंग",
		Language: "hi",
		Category: "soil",
		Image:    &models.Attachment{Filename: "field.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", post.Language)
	require.NotNil(t, post.Category)
	assert.Equal(t, "soil", *post.Category)
	require.NotNil(t, post.Image)
	assert.Equal(t, "/uploads/1-field.png", *post.Image)
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "1", "alice")
	bob := f.user(t, "2", "bob")

	_, err := f.posts.Create(ctx, CreatePostRequest{Username: "alice"})
	assert.ErrorIs(t, err, models.ErrInvalidOperation)

	_, err = f.posts.Create(ctx, CreatePostRequest{Username: "nobody", Content: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.posts.Create(ctx, CreatePostRequest{Username: "alice", UserID: bob.ID, Content: "x"})
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestListPostsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "1", "alice")

	for _, c := range []string{"first", "second", "third"} {
		_, err := f.posts.Create(ctx, CreatePostRequest{Username: "alice", Content: c})
		require.NoError(t, err)
	}

	posts, err := f.posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "third", posts[0].Content)
	assert.Equal(t, "first", posts[2].Content)
}

func TestDirectoryListAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "1", "alice")
	f.user(t, "2", "bob")
	f.user(t, "3", "carol")

	_, err := f.graph.FollowByName(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.graph.FollowByName(ctx, "carol", "bob")
	require.NoError(t, err)

	profiles, err := f.directory.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	byName := map[string]*models.Profile{}
	for _, p := range profiles {
		byName[p.Name] = p
	}
	assert.ElementsMatch(t, []string{"alice", "carol"}, byName["bob"].Followers)
	assert.Equal(t, 2, byName["bob"].FollowerCount)
	assert.Equal(t, []string{"bob"}, byName["alice"].Following)
	assert.Equal(t, 1, byName["carol"].FollowingCount)
}

func TestDirectoryResolveValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.directory.Resolve(context.Background(), "", "alice")
	assert.ErrorIs(t, err, models.ErrInvalidOperation)

	_, err = f.directory.LookupByName(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
