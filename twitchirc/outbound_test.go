package twitchirc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutboundFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  IRCer
		want string
	}{
		{name: "pass", msg: PassMessage{OAuth: "oauth:abc"}, want: "PASS oauth:abc"},
		{name: "nick", msg: NickMessage{Nick: "mechbot"}, want: "NICK mechbot"},
		{name: "cap-req", msg: CapReqMessage{}, want: "CAP REQ :twitch.tv/commands twitch.tv/tags"},
		{name: "join", msg: JoinMessage{Channel: "znxtech"}, want: "JOIN #znxtech"},
		{name: "part", msg: PartMessage{Channel: "znxtech"}, want: "PART #znxtech"},
		{name: "privmsg", msg: PrivateMessage{Channel: "znxtech", Message: "hello :)"}, want: "PRIVMSG #znxtech :hello :)"},
		{name: "pong", msg: PongMessage{Source: "tmi.twitch.tv"}, want: "PONG :tmi.twitch.tv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.IRC())
		})
	}
}
