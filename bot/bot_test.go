package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/twitchirc"
)

type fakeRoomStore struct {
	mu    sync.Mutex
	users map[int64]store.User
	modes map[int64]store.RoomModes
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		users: map[int64]store.User{},
		modes: map[int64]store.RoomModes{},
	}
}

func (f *fakeRoomStore) UserByID(_ context.Context, id int64) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}

	return user, nil
}

func (f *fakeRoomStore) FindOrCreateUser(_ context.Context, id int64, name string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, ok := f.users[id]; ok {
		return user, nil
	}

	user := store.User{ID: id, Name: name}
	f.users[id] = user
	return user, nil
}

func (f *fakeRoomStore) UpdateRoomModes(_ context.Context, id int64, modes store.RoomModes) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.modes[id] = modes
	return nil
}

type countingDispatcher struct {
	mu    sync.Mutex
	count int
}

func (c *countingDispatcher) Dispatch(context.Context, twitchirc.MessageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *countingDispatcher) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type countingReposts struct {
	mu    sync.Mutex
	count int
}

func (c *countingReposts) Process(context.Context, twitchirc.MessageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *countingReposts) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestBot_MessageReachesDispatcherAndReposts(t *testing.T) {
	t.Parallel()

	roomStore := newFakeRoomStore()
	dispatcher := &countingDispatcher{}
	reposts := &countingReposts{}
	b := New(context.Background(), zerolog.Nop(), roomStore, dispatcher, reposts, nil)

	b.OnMessage(twitchirc.MessageEvent{RoomID: 1, UserID: 2, UserName: "foo", Message: "hello"})
	b.Wait()

	assert.Equal(t, 1, dispatcher.calls())
	assert.Equal(t, 1, reposts.calls())

	user, err := roomStore.UserByID(context.Background(), 2)
	assert.NoError(t, err, "chatting users get a persisted record")
	assert.Equal(t, "foo", user.Name)
}

func TestBot_KnownBotsAreIgnored(t *testing.T) {
	t.Parallel()

	dispatcher := &countingDispatcher{}
	reposts := &countingReposts{}
	b := New(context.Background(), zerolog.Nop(), newFakeRoomStore(), dispatcher, reposts, []string{"nightbot"})

	b.OnMessage(twitchirc.MessageEvent{RoomID: 1, UserID: 2, UserName: "nightbot", Message: "$hey"})
	b.Wait()

	assert.Zero(t, dispatcher.calls())
	assert.Zero(t, reposts.calls())
}

func TestBot_RoomstateIsPersisted(t *testing.T) {
	t.Parallel()

	roomStore := newFakeRoomStore()
	b := New(context.Background(), zerolog.Nop(), roomStore, &countingDispatcher{}, &countingReposts{}, nil)

	b.OnRoomstate(twitchirc.RoomstateEvent{
		RoomID:               10,
		EmoteOnly:            true,
		FollowersOnlyMinutes: 30,
	})
	b.Wait()

	roomStore.mu.Lock()
	modes := roomStore.modes[10]
	roomStore.mu.Unlock()

	assert.Equal(t, store.RoomModes{EmoteOnly: true, FollowersOnlyMinutes: 30}, modes)
}
