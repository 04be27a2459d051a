// Package scraper keeps a live Discord session and records the messages that
// arrive in one target channel or as direct messages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/sipeed/shimharness/pkg/logger"
)

// ErrClosed is returned by waits that end because the scraper shut down.
var ErrClosed = errors.New("scraper closed")

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	ShuttingDown
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ShuttingDown:
		return "shutting_down"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is the part of *discordgo.Session the scraper drives.
type Session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// NewDiscordSession creates a bot session subscribed to every gateway intent.
// Handlers run on the gateway goroutine so messages are captured in the order
// Discord delivers them.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	session, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsAll
	session.SyncEvents = true
	return session, nil
}

// Scraper owns one session for the duration of a scenario. Start and Stop are
// meant to be called from the owning goroutine; every other method is safe
// to use concurrently.
type Scraper struct {
	session   Session
	channelID string

	state atomic.Int32

	// mu guards ready, messages and changed. It is only held for single
	// reads and appends, never around session I/O.
	mu       sync.Mutex
	ready    bool
	messages []Message
	changed  chan struct{}

	cancel   context.CancelFunc
	removers []func()
	done     chan struct{}
	err      error
}

func New(session Session, channelID string) *Scraper {
	return &Scraper{
		session:   session,
		channelID: channelID,
		changed:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Scraper) State() State {
	return State(s.state.Load())
}

// Start registers the event handlers and opens the session on a dedicated
// goroutine. It returns as soon as connecting has begun.
func (s *Scraper) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		return fmt.Errorf("scraper cannot start from state %s", s.State())
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.removers = []func(){
		s.session.AddHandler(s.onReady),
		s.session.AddHandler(s.onMessageCreate),
	}

	go s.run(runCtx)
	return nil
}

func (s *Scraper) run(ctx context.Context) {
	defer close(s.done)

	logger.InfoCF("scraper", "Opening Discord session", map[string]interface{}{
		"channel": s.channelID,
	})
	if err := s.session.Open(); err != nil {
		s.err = fmt.Errorf("failed to open discord session: %w", err)
		logger.ErrorCF("scraper", "Discord session failed", map[string]interface{}{
			"error": err.Error(),
		})
		s.finish()
		return
	}

	<-ctx.Done()
	s.state.Store(int32(ShuttingDown))

	if err := s.session.Close(); err != nil {
		logger.WarnCF("scraper", "Discord session close failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.finish()
	logger.InfoC("scraper", "Discord session closed")
}

func (s *Scraper) finish() {
	for _, remove := range s.removers {
		remove()
	}
	// Taking the lock here orders Closed after any append already in flight.
	s.mu.Lock()
	s.state.Store(int32(Closed))
	s.broadcastLocked()
	s.mu.Unlock()
}

// Stop requests shutdown and returns immediately. Use Wait to join.
func (s *Scraper) Stop() {
	for {
		cur := s.State()
		switch cur {
		case Disconnected:
			if s.state.CompareAndSwap(int32(Disconnected), int32(Closed)) {
				close(s.done)
				return
			}
		case Connecting, Connected:
			if s.state.CompareAndSwap(int32(cur), int32(ShuttingDown)) {
				s.cancel()
				return
			}
		default:
			return
		}
	}
}

// Wait blocks until the session goroutine has exited and returns the error
// that ended it, if any. After Wait the buffer no longer changes.
func (s *Scraper) Wait() error {
	if s.State() == Disconnected {
		return nil
	}
	<-s.done
	return s.err
}

// Done is closed once the session goroutine has exited.
func (s *Scraper) Done() <-chan struct{} {
	return s.done
}

func (s *Scraper) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Snapshot returns a copy of the messages captured so far, in arrival order.
func (s *Scraper) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// WaitReady blocks until the platform reports the session ready.
func (s *Scraper) WaitReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		ready, changed := s.ready, s.changed
		s.mu.Unlock()
		if ready {
			return nil
		}

		select {
		case <-changed:
		case <-s.done:
			if s.IsReady() {
				return nil
			}
			return s.closedErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitForMessages blocks until at least n messages are captured. It always
// returns the messages seen so far, also when it fails.
func (s *Scraper) WaitForMessages(ctx context.Context, n int) ([]Message, error) {
	for {
		s.mu.Lock()
		count, changed := len(s.messages), s.changed
		s.mu.Unlock()
		if count >= n {
			return s.Snapshot(), nil
		}

		select {
		case <-changed:
		case <-s.done:
			msgs := s.Snapshot()
			if len(msgs) >= n {
				return msgs, nil
			}
			return msgs, s.closedErr()
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

func (s *Scraper) closedErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrClosed
}

func (s *Scraper) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Scraper) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if !s.state.CompareAndSwap(int32(Connecting), int32(Connected)) {
		return
	}
	s.mu.Lock()
	s.ready = true
	s.broadcastLocked()
	s.mu.Unlock()

	fields := map[string]interface{}{"channel": s.channelID}
	if r != nil && r.User != nil {
		fields["user"] = r.User.Username
	}
	logger.InfoCF("scraper", "Discord session ready", fields)
}

// accepts keeps messages from the target channel and any direct message.
func (s *Scraper) accepts(m *discordgo.Message) bool {
	return m.ChannelID == s.channelID || m.GuildID == ""
}

func (s *Scraper) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || !s.accepts(m.Message) {
		return
	}
	msg := capture(m.Message)

	s.mu.Lock()
	if s.State() != Connected {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	count := len(s.messages)
	s.broadcastLocked()
	s.mu.Unlock()

	logger.DebugCF("scraper", "Message captured", map[string]interface{}{
		"channel":     msg.ChannelID,
		"direct":      msg.Direct,
		"attachments": len(msg.Attachments),
		"embeds":      len(msg.Embeds),
		"count":       count,
	})
}
