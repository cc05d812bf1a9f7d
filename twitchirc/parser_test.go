package twitchirc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseBadgeLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string]int
	}{
		{
			name:  "empty-string",
			input: "",
			want:  map[string]int{},
		},
		{
			name:  "single-badge",
			input: "twitch-recap-2024/1",
			want:  map[string]int{"twitch-recap-2024": 1},
		},
		{
			name:  "multiple-badges",
			input: "moderator/1,subscriber/12",
			want:  map[string]int{"moderator": 1, "subscriber": 12},
		},
		{
			name:  "missing-level",
			input: "staff",
			want:  map[string]int{"staff": 0},
		},
		{
			name:  "non-numeric-level",
			input: "subscriber/abc",
			want:  map[string]int{"subscriber": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseBadgeLevels(tt.input), "expected matching badge map")
		})
	}
}

func Test_parseTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  tags
	}{
		{
			name:  "valid-input",
			input: "emote-only=0;followers-only=0;r9k=0;room-id=82032862;slow=0;subs-only=0",
			want: tags{
				"emote-only":     "0",
				"followers-only": "0",
				"r9k":            "0",
				"room-id":        "82032862",
				"slow":           "0",
				"subs-only":      "0",
			},
		},
		{
			name:  "double-equal-input",
			input: "emote-only==0;slow=0",
			want: tags{
				"emote-only": "=0",
				"slow":       "0",
			},
		},
		{
			name:  "duplicate-key-last-wins",
			input: "color=red;color=blue",
			want: tags{
				"color": "blue",
			},
		},
		{
			name:  "escaped-space",
			input: `system-msg=5\sraiders`,
			want: tags{
				"system-msg": "5 raiders",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.EqualValues(t, tt.want, parseTags(tt.input), "expected matching tags")
		})
	}
}

func TestParse_Message(t *testing.T) {
	t.Parallel()

	line := "@badges=moderator/1,subscriber/12;id=abc;room-id=10;user-id=20;display-name=Foo :foo!foo@foo.tmi.twitch.tv PRIVMSG #chan :hello world"

	ev := Parse(line)
	msg, ok := ev.(MessageEvent)
	require.True(t, ok, "expected a message event")

	assert.Equal(t, KindMessage, msg.Kind())
	assert.Equal(t, line, msg.Raw)
	assert.Equal(t, ":foo!foo@foo.tmi.twitch.tv", msg.Source)
	assert.Equal(t, map[string]int{"moderator": 1, "subscriber": 12}, msg.Badges)
	assert.Equal(t, "abc", msg.ID)
	assert.Equal(t, int64(10), msg.RoomID)
	assert.Equal(t, int64(20), msg.UserID)
	assert.Equal(t, "foo", msg.UserName)
	assert.Equal(t, "Foo", msg.UserDisplayName)
	assert.Equal(t, "chan", msg.Channel)
	assert.Equal(t, "hello world", msg.Message)
}

func TestParse_IsPure(t *testing.T) {
	t.Parallel()

	line := "@badges=subscriber/3;mod=0;room-id=1;subscriber=1;user-id=2;display-name=Bar PRIVMSG #chan :hi"

	require.Equal(t, Parse(line), Parse(line), "same input must yield field-equal output")
}

func TestParse_MessageKeepsInnerColons(t *testing.T) {
	t.Parallel()

	// Only the leading colon marker is stripped, colons inside the message
	// survive.
	ev := Parse("@room-id=1 :u!u@u.tmi.twitch.tv PRIVMSG #chan ::) see: https://a.example/x")

	msg, ok := ev.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, ":) see: https://a.example/x", msg.Message)
}

func TestParse_Ping(t *testing.T) {
	t.Parallel()

	// The ping source arrives as an argument, not as the prefix.
	ev := Parse("PING :tmi.twitch.tv")

	ping, ok := ev.(PingEvent)
	require.True(t, ok, "expected a ping event")
	assert.Equal(t, "tmi.twitch.tv", ping.PingSource)
}

func TestParse_Roomstate(t *testing.T) {
	t.Parallel()

	ev := Parse("@emote-only=0;followers-only=-1;r9k=1;room-id=82032862;slow=30;subs-only=1 :tmi.twitch.tv ROOMSTATE #chan")

	room, ok := ev.(RoomstateEvent)
	require.True(t, ok, "expected a roomstate event")
	assert.Equal(t, int64(82032862), room.RoomID)
	assert.False(t, room.EmoteOnly)
	assert.Equal(t, -1, room.FollowersOnlyMinutes)
	assert.True(t, room.UniqueOnly)
	assert.Equal(t, 30, room.SlowSeconds)
	assert.True(t, room.SubscriberOnly)
	assert.Equal(t, "chan", room.Channel)
}

func TestParse_Usernotice(t *testing.T) {
	t.Parallel()

	ev := Parse(`@badges=subscriber/6;display-name=Znx;msg-id=resub;room-id=5;system-msg=Znx\ssubscribed;user-id=7 :tmi.twitch.tv USERNOTICE #chan :still here`)

	notice, ok := ev.(UsernoticeEvent)
	require.True(t, ok, "expected a usernotice event")
	assert.Equal(t, "resub", notice.NoticeType)
	assert.Equal(t, "Znx subscribed", notice.NoticeMessage)
	assert.Equal(t, "znx", notice.UserName)
	assert.Equal(t, "still here", notice.Message)
}

func TestParse_UnknownVerbKeepsEverything(t *testing.T) {
	t.Parallel()

	ev := Parse("@msg-id=slow_on :tmi.twitch.tv NOTICE #chan :This room is now in slow mode.")

	unknown, ok := ev.(UnknownEvent)
	require.True(t, ok, "expected an unknown event")
	assert.Equal(t, "NOTICE", unknown.Verb)
	assert.Equal(t, map[string]string{"msg-id": "slow_on"}, unknown.Tags)
	assert.Equal(t, []string{"#chan", ":This", "room", "is", "now", "in", "slow", "mode."}, unknown.Args)
}

func TestParse_MalformedInputNeverPanics(t *testing.T) {
	t.Parallel()

	lines := []string{
		"",
		"\r\n",
		"@",
		"@;;=;=",
		":",
		": ",
		"@badges= :src",
		"PRIVMSG",
		"PRIVMSG #chan",
		"@room-id=notanumber PRIVMSG #chan :hi",
	}

	for _, line := range lines {
		require.NotNil(t, Parse(line), "line %q", line)
	}
}

func Fuzz_Parse(f *testing.F) {
	msgLineFmt := `@badge-info=subscriber/21;badges=subscriber/18;color=#8A2BE2;display-name=znx;id=60654e92-f779-4e3b-beec-3f2d38031be9;mod=0;room-id=92038375;subscriber=1;tmi-sent-ts=1763899302525;turbo=0;user-id=1;user-type= :znx!znx@znx.tmi.twitch.tv PRIVMSG #znx :%s`

	f.Add("hello world")
	f.Add(":colon start")

	f.Fuzz(func(t *testing.T, input string) {
		require.NotNil(t, Parse(fmt.Sprintf(msgLineFmt, input)))
	})
}

func TestParse_JoinAndPartCarryUserLogin(t *testing.T) {
	t.Parallel()

	join := Parse(":SomeUser!someuser@someuser.tmi.twitch.tv JOIN #somechan")
	require.IsType(t, JoinEvent{}, join)
	joinEv := join.(JoinEvent)
	assert.Equal(t, "someuser", joinEv.UserName)
	assert.Equal(t, "somechan", joinEv.Channel)

	part := Parse(":someuser!someuser@someuser.tmi.twitch.tv PART #somechan")
	require.IsType(t, PartEvent{}, part)
	partEv := part.(PartEvent)
	assert.Equal(t, "someuser", partEv.UserName)
	assert.Equal(t, "somechan", partEv.Channel)
}

func TestParse_JoinWithServerPrefixHasNoUserLogin(t *testing.T) {
	t.Parallel()

	ev := Parse(":tmi.twitch.tv JOIN #somechan")
	require.IsType(t, JoinEvent{}, ev)
	assert.Empty(t, ev.(JoinEvent).UserName)
}
