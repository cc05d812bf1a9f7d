package twitchirc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/znxtech/mechbot/telemetry"
)

const (
	DefaultIRCWSURL   = "wss://irc-ws.chat.twitch.tv:443"
	ircDialTimeout    = 5 * time.Second
	ircPingInterval   = 10 * time.Second
	ircPingTimeout    = 5 * time.Second
	ircReconnectDelay = 5 * time.Second
	ircMaxMessageSize = 1 * 1024 * 1024 // 1MiB
	ircSendBufferSize = 64
)

// errReconnectRequested signals that the server asked us to reconnect via a
// RECONNECT notice.
var errReconnectRequested = errors.New("twitchirc: server requested reconnect")

// State is the connection lifecycle phase of a Conn.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
)

// Credentials authenticate the login handshake.
type Credentials struct {
	Nick  string
	OAuth string
}

// ChannelSource lists the channels marked connected, so they can be
// rejoined after a (re)connect.
type ChannelSource interface {
	ConnectedChannelNames(ctx context.Context) ([]string, error)
}

// Handler receives parsed inbound events. Hooks are invoked synchronously
// in line arrival order; implementations that do blocking work must
// schedule it themselves so they do not stall the read loop.
//
// Ping events are answered by the Conn itself and never reach the handler.
type Handler interface {
	OnMessage(ev MessageEvent)
	OnUserstate(ev UserstateEvent)
	OnUsernotice(ev UsernoticeEvent)
	OnRoomstate(ev RoomstateEvent)
	OnJoin(ev JoinEvent)
	OnPart(ev PartEvent)
	OnUnknown(ev UnknownEvent)
}

// NopHandler implements Handler with no-op hooks, reserved for event kinds
// a bot does not care about. Embed it and override what you need.
type NopHandler struct{}

func (NopHandler) OnMessage(MessageEvent)       {}
func (NopHandler) OnUserstate(UserstateEvent)   {}
func (NopHandler) OnUsernotice(UsernoticeEvent) {}
func (NopHandler) OnRoomstate(RoomstateEvent)   {}
func (NopHandler) OnJoin(JoinEvent)             {}
func (NopHandler) OnPart(PartEvent)             {}
func (NopHandler) OnUnknown(UnknownEvent)       {}

// Conn manages a single IRC WebSocket connection with automatic
// reconnection. It owns the socket handle exclusively; all outbound traffic
// goes through Send.
type Conn struct {
	creds    Credentials
	channels ChannelSource
	handler  Handler
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sendCh chan IRCer

	mu     sync.Mutex
	state  State
	closed bool

	// WSURL allows overriding the WebSocket URL for testing.
	WSURL string
}

// NewConn creates a new IRC connection. Nothing is dialed until Run is
// called.
func NewConn(creds Credentials, channels ChannelSource, handler Handler, logger zerolog.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		creds:    creds,
		channels: channels,
		handler:  handler,
		logger:   logger.With().Str("conn", "irc").Str("session_id", uuid.NewString()).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		sendCh:   make(chan IRCer, ircSendBufferSize),
		state:    StateDisconnected,
		WSURL:    DefaultIRCWSURL,
	}
}

// State reports the current lifecycle phase.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.logger.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("connection state changed")
	}
}

// Close stops the connection and all goroutines.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// Send queues a frame to be written to the connection.
func (c *Conn) Send(msg IRCer) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("connection closed")
	}
	c.mu.Unlock()

	select {
	case c.sendCh <- msg:
		return nil
	case <-c.ctx.Done():
		return errors.New("connection closed")
	}
}

// JoinChannel sends a join frame for the channel. Persisting the channel as
// connected, so it is rejoined after a reconnect, is the caller's job.
func (c *Conn) JoinChannel(channel string) error {
	return c.Send(JoinMessage{Channel: strings.ToLower(channel)})
}

// PartChannel sends a part frame for the channel.
func (c *Conn) PartChannel(channel string) error {
	return c.Send(PartMessage{Channel: strings.ToLower(channel)})
}

// Run is the main loop that maintains the connection with automatic
// reconnect. It blocks until Close is called.
func (c *Conn) Run() {
	defer close(c.sendCh)
	defer c.setState(StateDisconnected)

	for {
		c.setState(StateConnecting)

		err := c.connectOnce()
		if c.ctx.Err() != nil {
			c.logger.Info().Msg("connection stopped")
			return
		}

		if err != nil {
			c.logger.Warn().Err(err).Msg("connection lost, will reconnect")
		}

		c.setState(StateReconnecting)
		telemetry.Reconnects.Inc()

		// Fixed delay, deliberately not an exponential schedule.
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(ircReconnectDelay):
			c.logger.Info().Msg("reconnecting...")
		}
	}
}

func (c *Conn) connectOnce() error {
	dialCtx, dialCancel := context.WithTimeout(c.ctx, ircDialTimeout)
	defer dialCancel()

	ws, _, err := websocket.Dial(dialCtx, c.WSURL, &websocket.DialOptions{
		HTTPClient: &http.Client{Timeout: ircDialTimeout * 2},
	})
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "closing")

	ws.SetReadLimit(ircMaxMessageSize)

	if err := c.authenticate(ws); err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}

	if err := c.rejoinChannels(ws); err != nil {
		return fmt.Errorf("rejoin failed: %w", err)
	}

	c.setState(StateOpen)

	g, ctx := errgroup.WithContext(c.ctx)

	// Internal channel carrying ping source tokens (reader -> writer).
	pongCh := make(chan string, 1)

	g.Go(func() error {
		return c.readLoop(ctx, ws, pongCh)
	})

	g.Go(func() error {
		return c.writeLoop(ctx, ws, pongCh)
	})

	g.Go(func() error {
		return c.pingLoop(ctx, ws)
	})

	return g.Wait()
}

func (c *Conn) authenticate(ws *websocket.Conn) error {
	oauth := c.creds.OAuth
	if !strings.HasPrefix(oauth, "oauth:") {
		oauth = "oauth:" + oauth
	}

	setup := []IRCer{
		PassMessage{OAuth: oauth},
		NickMessage{Nick: c.creds.Nick},
		CapReqMessage{},
	}

	for _, msg := range setup {
		if err := ws.Write(c.ctx, websocket.MessageText, []byte(msg.IRC())); err != nil {
			return err
		}
	}

	return nil
}

// rejoinChannels replays join frames for every channel marked connected in
// the store.
func (c *Conn) rejoinChannels(ws *websocket.Conn) error {
	if c.channels == nil {
		return nil
	}

	names, err := c.channels.ConnectedChannelNames(c.ctx)
	if err != nil {
		// The store being unavailable should not kill the session, the bot
		// just comes up with no channels until joins happen.
		c.logger.Warn().Err(err).Msg("could not list connected channels for rejoin")
		return nil
	}

	for _, name := range names {
		msg := JoinMessage{Channel: strings.ToLower(name)}
		if err := ws.Write(c.ctx, websocket.MessageText, []byte(msg.IRC())); err != nil {
			return err
		}

		c.logger.Info().Str("channel", name).Msg("rejoined channel")
	}

	return nil
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn, pongCh chan<- string) error {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}

		// Twitch may pack multiple lines into one frame. Lines are handled
		// strictly in arrival order, later lines can depend on earlier
		// state.
		for _, line := range strings.Split(string(data), "\r\n") {
			if line == "" {
				continue
			}

			telemetry.LinesParsed.Inc()

			switch ev := Parse(line).(type) {
			case PingEvent:
				// Answered directly, no queuing behind dispatch.
				select {
				case pongCh <- ev.PingSource:
				default:
				}
			case ReconnectEvent:
				return errReconnectRequested
			case MessageEvent:
				c.handler.OnMessage(ev)
			case UserstateEvent:
				c.handler.OnUserstate(ev)
			case UsernoticeEvent:
				c.handler.OnUsernotice(ev)
			case RoomstateEvent:
				c.handler.OnRoomstate(ev)
			case JoinEvent:
				c.handler.OnJoin(ev)
			case PartEvent:
				c.handler.OnPart(ev)
			case UnknownEvent:
				telemetry.UnknownEvents.Inc()
				c.handler.OnUnknown(ev)
			}
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context, ws *websocket.Conn, pongCh <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case source := <-pongCh:
			pong := PongMessage{Source: source}
			if err := ws.Write(ctx, websocket.MessageText, []byte(pong.IRC())); err != nil {
				return err
			}

			telemetry.PongsSent.Inc()
		case msg, ok := <-c.sendCh:
			if !ok {
				return nil
			}
			if err := ws.Write(ctx, websocket.MessageText, []byte(msg.IRC())); err != nil {
				return err
			}
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(ircPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, ircPingTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping timeout: %w", err)
			}
		}
	}
}
