package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"kissan-connect-backend/internal/models"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
)

// Key families. IDs are UUIDs so they never contain the separator.
const (
	userPrefix       = "user/"
	userMobilePrefix = "user-mobile/"
	userNamePrefix   = "user-name/"
	followPrefix     = "follow/"   // follow/<follower>/<target>
	followerPrefix   = "follower/" // follower/<target>/<follower>
	messagePrefix    = "msg/"      // msg/<conversation>/<seq>
	unreadPrefix     = "unread/"   // unread/<receiver>/<sender>/<seq> -> message key
	postPrefix       = "post/"     // post/<seq>
	seqKey           = "meta/seq"
)

var errNoKey = errors.New("key not found")

// PebbleStore is the Store backed by an embedded Pebble database. Writes that
// read before writing run under mu; multi-key reads take the read lock so
// they never observe half of a batch.
type PebbleStore struct {
	db  *pebble.DB
	mu  sync.RWMutex
	seq int64
}

// OpenPebbleStore opens (or creates) a Pebble database at path
func OpenPebbleStore(path string) (*PebbleStore, error) {
	return openPebble(path, &pebble.Options{})
}

// OpenInMemoryPebbleStore opens a Pebble database that lives in memory only
func OpenInMemoryPebbleStore() (*PebbleStore, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(path string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	s := &PebbleStore{db: db}
	raw, err := s.get(seqKey)
	switch {
	case err == nil:
		s.seq = int64(binary.BigEndian.Uint64(raw))
	case errors.Is(err, errNoKey):
	default:
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PebbleStore) Users() UserStore       { return pebbleUsers{s} }
func (s *PebbleStore) Follows() FollowStore   { return pebbleFollows{s} }
func (s *PebbleStore) Messages() MessageStore { return pebbleMessages{s} }
func (s *PebbleStore) Posts() PostStore       { return pebblePosts{s} }

// Close closes the database
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func (s *PebbleStore) get(key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errNoKey
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (s *PebbleStore) has(key string) (bool, error) {
	_, err := s.get(key)
	if errors.Is(err, errNoKey) {
		return false, nil
	}
	return err == nil, err
}

func (s *PebbleStore) getJSON(key string, out interface{}) error {
	raw, err := s.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// scan calls fn for every key starting with prefix, in key order. The
// slices passed to fn are only valid for the duration of the call.
func (s *PebbleStore) scan(prefix string, fn func(key, value []byte) error) error {
	lower := []byte(prefix)
	upper := append([]byte(prefix[:len(prefix)-1]), prefix[len(prefix)-1]+1)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *PebbleStore) count(prefix string) (int, error) {
	n := 0
	err := s.scan(prefix, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// nextSeq reserves the next sequence number and records it in b.
// Callers hold mu.
func (s *PebbleStore) nextSeq(b *pebble.Batch) (int64, error) {
	s.seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(s.seq))
	if err := b.Set([]byte(seqKey), buf, nil); err != nil {
		return 0, err
	}
	return s.seq, nil
}

func setJSON(b *pebble.Batch, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return b.Set([]byte(key), data, nil)
}

func seqSuffix(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

func conversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

type pebbleUsers struct{ s *PebbleStore }

func (u pebbleUsers) UpsertByMobile(_ context.Context, mobile, name string) (*models.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.get(userNamePrefix + name)
	if err != nil && !errors.Is(err, errNoKey) {
		return nil, err
	}

	var user models.User
	rawID, err := s.get(userMobilePrefix + mobile)
	switch {
	case err == nil:
		if err := s.getJSON(userPrefix+string(rawID), &user); err != nil {
			return nil, err
		}
	case errors.Is(err, errNoKey):
		user = models.User{ID: uuid.New().String(), Mobile: mobile, CreatedAt: time.Now().UTC()}
	default:
		return nil, err
	}
	if owner != nil && string(owner) != user.ID {
		return nil, models.ErrNameTaken
	}

	b := s.db.NewBatch()
	defer b.Close()
	if user.Name != "" && user.Name != name {
		if err := b.Delete([]byte(userNamePrefix+user.Name), nil); err != nil {
			return nil, err
		}
	}
	user.Name = name
	if err := setJSON(b, userPrefix+user.ID, &user); err != nil {
		return nil, err
	}
	if err := b.Set([]byte(userMobilePrefix+mobile), []byte(user.ID), nil); err != nil {
		return nil, err
	}
	if err := b.Set([]byte(userNamePrefix+name), []byte(user.ID), nil); err != nil {
		return nil, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &user, nil
}

func (u pebbleUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.s.getJSON(userPrefix+id, &user); err != nil {
		if errors.Is(err, errNoKey) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (u pebbleUsers) GetByName(ctx context.Context, name string) (*models.User, error) {
	id, err := u.s.get(userNamePrefix + name)
	if err != nil {
		if errors.Is(err, errNoKey) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return u.GetByID(ctx, string(id))
}

func (u pebbleUsers) List(_ context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0)
	err := u.s.scan(userPrefix, func(_, value []byte) error {
		var user models.User
		if err := json.Unmarshal(value, &user); err != nil {
			return fmt.Errorf("failed to decode user: %w", err)
		}
		users = append(users, &user)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (u pebbleUsers) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := u.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.PushToken = pushToken
	b := s.db.NewBatch()
	defer b.Close()
	if err := setJSON(b, userPrefix+user.ID, user); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

type pebbleFollows struct{ s *PebbleStore }

func (f pebbleFollows) ToggleFollow(_ context.Context, followerID, targetID string) (*models.FollowResult, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{followerID, targetID} {
		ok, err := s.has(userPrefix + id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.ErrUserNotFound
		}
	}

	edge := []byte(followPrefix + followerID + "/" + targetID)
	mirror := []byte(followerPrefix + targetID + "/" + followerID)
	exists, err := s.has(string(edge))
	if err != nil {
		return nil, err
	}

	result := &models.FollowResult{}
	b := s.db.NewBatch()
	defer b.Close()
	if exists {
		if err := b.Delete(edge, nil); err != nil {
			return nil, err
		}
		if err := b.Delete(mirror, nil); err != nil {
			return nil, err
		}
		result.Action = models.ActionUnfollowed
	} else {
		stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := b.Set(edge, stamp, nil); err != nil {
			return nil, err
		}
		if err := b.Set(mirror, stamp, nil); err != nil {
			return nil, err
		}
		result.Action = models.ActionFollowed
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to toggle follow: %w", err)
	}

	if result.FollowerCount, err = s.count(followerPrefix + targetID + "/"); err != nil {
		return nil, err
	}
	if result.FollowingCount, err = s.count(followPrefix + followerID + "/"); err != nil {
		return nil, err
	}
	return result, nil
}

func (f pebbleFollows) Edges(_ context.Context, userID string) (*models.Edges, error) {
	s := f.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := &models.Edges{}
	collect := func(prefix string, out *[]string) error {
		return s.scan(prefix, func(key, _ []byte) error {
			*out = append(*out, string(key[len(prefix):]))
			return nil
		})
	}
	if err := collect(followerPrefix+userID+"/", &edges.Followers); err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	if err := collect(followPrefix+userID+"/", &edges.Following); err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return edges, nil
}

func (f pebbleFollows) IsFollowing(_ context.Context, followerID, targetID string) (bool, error) {
	return f.s.has(followPrefix + followerID + "/" + targetID)
}

type pebbleMessages struct{ s *PebbleStore }

func (m pebbleMessages) Create(_ context.Context, msg *models.Message) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	seq, err := s.nextSeq(b)
	if err != nil {
		return err
	}
	msg.Seq = seq
	key := messagePrefix + conversationKey(msg.SenderID, msg.ReceiverID) + "/" + seqSuffix(seq)
	if err := setJSON(b, key, msg); err != nil {
		return err
	}
	if !msg.Read {
		idx := unreadPrefix + msg.ReceiverID + "/" + msg.SenderID + "/" + seqSuffix(seq)
		if err := b.Set([]byte(idx), []byte(key), nil); err != nil {
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (m pebbleMessages) Conversation(_ context.Context, a, b string) ([]*models.Message, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]*models.Message, 0)
	err := s.scan(messagePrefix+conversationKey(a, b)+"/", func(_, value []byte) error {
		var msg models.Message
		if err := json.Unmarshal(value, &msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &msg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(messages[j])
	})
	return messages, nil
}

func (m pebbleMessages) MarkRead(_ context.Context, senderID, receiverID string) (int, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var idxKeys, msgKeys []string
	err := s.scan(unreadPrefix+receiverID+"/"+senderID+"/", func(key, value []byte) error {
		idxKeys = append(idxKeys, string(key))
		msgKeys = append(msgKeys, string(value))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan unread messages: %w", err)
	}
	if len(idxKeys) == 0 {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	for i, key := range msgKeys {
		var msg models.Message
		if err := s.getJSON(key, &msg); err != nil {
			return 0, err
		}
		msg.Read = true
		if err := setJSON(b, key, &msg); err != nil {
			return 0, err
		}
		if err := b.Delete([]byte(idxKeys[i]), nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return len(idxKeys), nil
}

func (m pebbleMessages) UnreadCount(_ context.Context, receiverID string) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	n, err := m.s.count(unreadPrefix + receiverID + "/")
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

type pebblePosts struct{ s *PebbleStore }

func (p pebblePosts) Create(_ context.Context, post *models.Post) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	seq, err := s.nextSeq(b)
	if err != nil {
		return err
	}
	if err := setJSON(b, postPrefix+seqSuffix(seq), post); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (p pebblePosts) List(_ context.Context) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	err := p.s.scan(postPrefix, func(_, value []byte) error {
		var post models.Post
		if err := json.Unmarshal(value, &post); err != nil {
			return fmt.Errorf("failed to decode post: %w", err)
		}
		posts = append(posts, &post)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	// keys are in insertion order; newest first is the reverse
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}
