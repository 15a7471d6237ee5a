package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	store         *repository.PebbleStore
	hub           *WSHub
	notifier      *Notifier
	directory     *DirectoryService
	graph         *GraphService
	conversations *ConversationService
	posts         *PostService
	blobs         *memoryBlobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.OpenInMemoryPebbleStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := NewWSHub(8)
	blobs := &memoryBlobs{}
	notifier := NewNotifier(hub, store.Users(), store.Messages())
	t.Cleanup(notifier.Wait)

	return &fixture{
		store:         store,
		hub:           hub,
		notifier:      notifier,
		directory:     NewDirectoryService(store.Users(), store.Follows()),
		graph:         NewGraphService(store.Users(), store.Follows(), notifier),
		conversations: NewConversationService(store.Users(), store.Messages(), blobs, notifier),
		posts:         NewPostService(store.Users(), store.Posts(), blobs),
		blobs:         blobs,
	}
}

func (f *fixture) user(t *testing.T, mobile, name string) *models.User {
	t.Helper()
	u, err := f.directory.Resolve(context.Background(), mobile, name)
	require.NoError(t, err)
	return u
}

// join registers a fresh connection for user and returns it
func (f *fixture) join(t *testing.T, user *models.User) *Client {
	t.Helper()
	c := f.hub.NewClient()
	require.NoError(t, f.hub.Register(user.ID, c))
	return c
}

// nextFrame reads one queued frame from c or fails after a second
func nextFrame(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data, ok := <-c.Outbound():
		require.True(t, ok, "client queue closed")
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return WSMessage{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Outbound():
		t.Fatalf("unexpected frame %s", data)
	default:
	}
}

type memoryBlobs struct {
	mu    sync.Mutex
	files []*models.Attachment
}

func (m *memoryBlobs) Save(_ context.Context, file *models.Attachment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, file)
	return fmt.Sprintf("/uploads/%d-%s", len(m.files), file.Filename), nil
}

type sentPush struct {
	token, title, body string
	badge              int
}

type recordingPush struct {
	sent chan sentPush
}

func newRecordingPush() *recordingPush {
	return &recordingPush{sent: make(chan sentPush, 8)}
}

func (p *recordingPush) Send(_ context.Context, token, title, body string, badge int) error {
	p.sent <- sentPush{token: token, title: title, body: body, badge: badge}
	return nil
}

type publishedEvent struct {
	subject string
	payload interface{}
}

type recordingBus struct {
	published chan publishedEvent
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(chan publishedEvent, 8)}
}

func (b *recordingBus) Publish(_ context.Context, subject string, v interface{}) error {
	b.published <- publishedEvent{subject: subject, payload: v}
	return nil
}

// blockingPush holds every Send until release is closed
type blockingPush struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingPush() *blockingPush {
	return &blockingPush{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (p *blockingPush) Send(ctx context.Context, _, _, _ string, _ int) error {
	p.started <- struct{}{}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
