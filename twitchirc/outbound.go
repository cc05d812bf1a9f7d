package twitchirc

import "fmt"

// IRCer are types that can be serialized into an outbound IRC frame.
type IRCer interface {
	IRC() string
}

// PassMessage is the credential line of the login handshake.
type PassMessage struct {
	OAuth string
}

func (p PassMessage) IRC() string {
	return "PASS " + p.OAuth
}

// NickMessage is the identity line of the login handshake.
type NickMessage struct {
	Nick string
}

func (n NickMessage) IRC() string {
	return "NICK " + n.Nick
}

// CapReqMessage requests the tag and command capabilities the bot depends
// on.
type CapReqMessage struct{}

func (c CapReqMessage) IRC() string {
	return "CAP REQ :twitch.tv/commands twitch.tv/tags"
}

type JoinMessage struct {
	Channel string
}

func (j JoinMessage) IRC() string {
	return "JOIN #" + j.Channel
}

type PartMessage struct {
	Channel string
}

func (p PartMessage) IRC() string {
	return "PART #" + p.Channel
}

type PrivateMessage struct {
	Channel string
	Message string
}

func (p PrivateMessage) IRC() string {
	return fmt.Sprintf("PRIVMSG #%s :%s", p.Channel, p.Message)
}

// PongMessage answers a server ping, echoing the source token the ping
// carried.
type PongMessage struct {
	Source string
}

func (p PongMessage) IRC() string {
	return "PONG :" + p.Source
}
