package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"kissan-connect-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	store, err := OpenInMemoryPebbleStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertByMobile(t *testing.T) {
	ctx := context.Background()
	users := newTestStore(t).Users()

	alice, err := users.UpsertByMobile(ctx, "9000000001", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)

	again, err := users.UpsertByMobile(ctx, "9000000001", "alicia")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)
	assert.Equal(t, "alicia", again.Name)

	_, err = users.GetByName(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)

	byName, err := users.GetByName(ctx, "alicia")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)
}

func TestUpsertRejectsTakenName(t *testing.T) {
	ctx := context.Background()
	users := newTestStore(t).Users()

	_, err := users.UpsertByMobile(ctx, "1", "bob")
	require.NoError(t, err)

	_, err = users.UpsertByMobile(ctx, "2", "bob")
	assert.ErrorIs(t, err, models.ErrNameTaken)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestListAndPushToken(t *testing.T) {
	ctx := context.Background()
	users := newTestStore(t).Users()

	a, err := users.UpsertByMobile(ctx, "1", "a")
	require.NoError(t, err)
	_, err = users.UpsertByMobile(ctx, "2", "b")
	require.NoError(t, err)

	token := "device-token"
	require.NoError(t, users.UpdatePushToken(ctx, a.ID, &token))

	got, err := users.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PushToken)
	assert.Equal(t, token, *got.PushToken)

	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, users.UpdatePushToken(ctx, uuid.New().String(), &token), models.ErrNotFound)
}

func TestToggleFollowKeepsBothSidesInSync(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	alice, _ := store.Users().UpsertByMobile(ctx, "1", "alice")
	bob, _ := store.Users().UpsertByMobile(ctx, "2", "bob")

	res, err := store.Follows().ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionFollowed, res.Action)
	assert.Equal(t, 1, res.FollowerCount)
	assert.Equal(t, 1, res.FollowingCount)

	bobEdges, err := store.Follows().Edges(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, bobEdges.Followers)
	aliceEdges, err := store.Follows().Edges(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, aliceEdges.Following)

	res, err = store.Follows().ToggleFollow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionUnfollowed, res.Action)
	assert.Zero(t, res.FollowerCount)
	assert.Zero(t, res.FollowingCount)

	bobEdges, err = store.Follows().Edges(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobEdges.Followers)
}

func TestToggleFollowUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	alice, _ := store.Users().UpsertByMobile(ctx, "1", "alice")

	_, err := store.Follows().ToggleFollow(ctx, alice.ID, uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentTogglesOnSamePair(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a, _ := store.Users().UpsertByMobile(ctx, "1", "a")
	b, _ := store.Users().UpsertByMobile(ctx, "2", "b")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Follows().ToggleFollow(ctx, a.ID, b.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	following, err := store.Follows().IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following, "an odd number of toggles ends followed")

	edges, err := store.Follows().Edges(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, edges.Followers, 1)
}

func TestMessagesOrderingAndReadState(t *testing.T) {
	ctx := context.Background()
	msgs := newTestStore(t).Messages()
	alice, bob := uuid.New().String(), uuid.New().String()

	base := time.Now().UTC()
	send := func(from, to, text string, at time.Time) *models.Message {
		m := &models.Message{ID: uuid.New().String(), SenderID: from, ReceiverID: to, Text: text, CreatedAt: at}
		require.NoError(t, msgs.Create(ctx, m))
		return m
	}
	send(alice, bob, "first", base)
	send(bob, alice, "second", base.Add(time.Millisecond))
	// same timestamp as "second": insertion order breaks the tie
	send(alice, bob, "third", base.Add(time.Millisecond))

	conv, err := msgs.Conversation(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "first", conv[0].Text)
	assert.Equal(t, "second", conv[1].Text)
	assert.Equal(t, "third", conv[2].Text)

	reverse, err := msgs.Conversation(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, conv, reverse)

	count, err := msgs.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	marked, err := msgs.MarkRead(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	count, err = msgs.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = msgs.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	conv, err = msgs.Conversation(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, conv[0].Read)
	assert.False(t, conv[1].Read)
	assert.True(t, conv[2].Read)

	marked, err = msgs.MarkRead(ctx, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestPostsNewestFirst(t *testing.T) {
	ctx := context.Background()
	posts := newTestStore(t).Posts()
	base := time.Now().UTC()

	for i, content := range []string{"old", "mid", "new"} {
		require.NoError(t, posts.Create(ctx, &models.Post{
			ID:        uuid.New().String(),
			Content:   content,
			Language:  "en",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].Content)
	assert.Equal(t, "old", list[2].Content)
}

func TestEmptyListsAreNotNil(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	users, err := store.Users().List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	msgs, err := store.Messages().Conversation(ctx, uuid.New().String(), uuid.New().String())
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	posts, err := store.Posts().List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}
