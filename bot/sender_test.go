package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/znxtech/mechbot/store"
	"github.com/znxtech/mechbot/twitchirc"
)

type fakeChannelStore struct {
	channels map[string]store.Channel
	err      error
}

func (f *fakeChannelStore) ChannelByName(_ context.Context, name string) (store.Channel, error) {
	if f.err != nil {
		return store.Channel{}, f.err
	}

	channel, ok := f.channels[name]
	if !ok {
		return store.Channel{}, store.ErrNotFound
	}

	return channel, nil
}

func (f *fakeChannelStore) ChannelByID(_ context.Context, id int64) (store.Channel, error) {
	for _, c := range f.channels {
		if c.ID == id {
			return c, nil
		}
	}

	return store.Channel{}, store.ErrNotFound
}

func (f *fakeChannelStore) ConnectedChannels(context.Context) ([]store.Channel, error) {
	var connected []store.Channel
	for _, c := range f.channels {
		if c.Connected {
			connected = append(connected, c)
		}
	}

	return connected, nil
}

type fakeLiveChecker struct {
	live map[string]bool
	err  error
}

func (f *fakeLiveChecker) IsChannelLive(_ context.Context, broadcastID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	return f.live[broadcastID], nil
}

type fakeConn struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (f *fakeConn) Send(msg twitchirc.IRCer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.frames = append(f.frames, msg.IRC())
	return nil
}

func (f *fakeConn) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.frames...)
}

func newTestSender(channels *fakeChannelStore, live *fakeLiveChecker) (*Sender, *fakeConn) {
	if channels == nil {
		channels = &fakeChannelStore{channels: map[string]store.Channel{}}
	}
	if live == nil {
		live = &fakeLiveChecker{}
	}

	conn := &fakeConn{}
	sender := NewSender(zerolog.Nop(), channels, live)
	sender.SetConn(conn)

	return sender, conn
}

func TestSender_SaysInRegularChannel(t *testing.T) {
	t.Parallel()

	channels := &fakeChannelStore{channels: map[string]store.Channel{
		"chan": {ID: 1, Name: "chan", OfflineOnly: false},
	}}
	live := &fakeLiveChecker{live: map[string]bool{"1": true}}
	sender, conn := newTestSender(channels, live)

	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))
	assert.Equal(t, []string{"PRIVMSG #chan :hello"}, conn.sent())
}

func TestSender_SuppressesOfflineOnlyChannelWhileLive(t *testing.T) {
	t.Parallel()

	channels := &fakeChannelStore{channels: map[string]store.Channel{
		"chan": {ID: 1, Name: "chan", OfflineOnly: true},
	}}
	live := &fakeLiveChecker{live: map[string]bool{"1": true}}
	sender, conn := newTestSender(channels, live)

	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))
	assert.Empty(t, conn.sent(), "offline-only channel must stay quiet during a stream")

	live.live["1"] = false
	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))
	assert.Len(t, conn.sent(), 1)
}

func TestSender_LiveLookupErrorSuppresses(t *testing.T) {
	t.Parallel()

	channels := &fakeChannelStore{channels: map[string]store.Channel{
		"chan": {ID: 1, Name: "chan", OfflineOnly: true},
	}}
	live := &fakeLiveChecker{err: errors.New("api down")}
	sender, conn := newTestSender(channels, live)

	assert.Error(t, sender.Say(context.Background(), "chan", "hello"))
	assert.Empty(t, conn.sent())
}

func TestSender_UnknownChannelStillSends(t *testing.T) {
	t.Parallel()

	sender, conn := newTestSender(nil, nil)

	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))
	assert.Len(t, conn.sent(), 1)
}

func TestSender_DuplicateMessagesAlternateSuffix(t *testing.T) {
	t.Parallel()

	sender, conn := newTestSender(nil, nil)

	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))
	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))
	require.NoError(t, sender.Say(context.Background(), "chan", "hello"))

	frames := conn.sent()
	require.Len(t, frames, 3)
	assert.Equal(t, "PRIVMSG #chan :hello", frames[0])
	assert.Equal(t, "PRIVMSG #chan :hello"+dedupSuffix, frames[1])
	assert.Equal(t, "PRIVMSG #chan :hello", frames[2], "suffix alternates so consecutive frames never match")
}

func TestSender_WithoutConnFails(t *testing.T) {
	t.Parallel()

	sender := NewSender(zerolog.Nop(), &fakeChannelStore{channels: map[string]store.Channel{}}, &fakeLiveChecker{})

	assert.Error(t, sender.Say(context.Background(), "chan", "hello"))
}
