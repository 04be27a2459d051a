// Package scrapertest provides an in-memory Discord session for tests.
package scrapertest

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Session records handlers like discordgo does and lets tests inject events.
type Session struct {
	// OpenErr, when set, is returned by Open.
	OpenErr error
	// AutoReady makes Open deliver a Ready event asynchronously.
	AutoReady bool
	// SyncEvents mirrors discordgo.Session.SyncEvents. When false, every
	// MessageCreate handler call runs on its own goroutine.
	SyncEvents bool

	mu       sync.Mutex
	handlers map[int]interface{}
	nextID   int
	opened   bool
	closed   bool
	closedCh chan struct{}
	readyCh  chan struct{}
}

func NewSession() *Session {
	return &Session{
		AutoReady:  true,
		SyncEvents: true,
		handlers:  make(map[int]interface{}),
		closedCh:  make(chan struct{}),
		readyCh:   make(chan struct{}),
	}
}

func (s *Session) AddHandler(handler interface{}) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *Session) Open() error {
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	if s.AutoReady {
		go s.EmitReady()
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closedCh)
	}
	return nil
}

// Closed is closed once Close has been called.
func (s *Session) Closed() <-chan struct{} {
	return s.closedCh
}

// ReadyDelivered is closed after the first Ready event has been dispatched.
func (s *Session) ReadyDelivered() <-chan struct{} {
	return s.readyCh
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened && !s.closed
}

func (s *Session) HandlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *Session) EmitReady() {
	ready := &discordgo.Ready{User: &discordgo.User{ID: "1", Username: "scraper"}}
	for _, h := range s.snapshot() {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.Ready)); ok {
			fn(nil, ready)
		}
	}
	s.mu.Lock()
	select {
	case <-s.readyCh:
	default:
		close(s.readyCh)
	}
	s.mu.Unlock()
}

// EmitMessage dispatches a MessageCreate event. With SyncEvents unset it
// returns once every handler goroutine has finished.
func (s *Session) EmitMessage(m *discordgo.Message) {
	evt := &discordgo.MessageCreate{Message: m}
	var wg sync.WaitGroup
	for _, h := range s.snapshot() {
		fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate))
		if !ok {
			continue
		}
		if s.SyncEvents {
			fn(nil, evt)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(nil, evt)
		}()
	}
	wg.Wait()
}

// EmitMessages dispatches each message in order. With SyncEvents unset every
// handler call is started before any is awaited, the way discordgo fans
// events out to goroutines.
func (s *Session) EmitMessages(msgs []*discordgo.Message) {
	if s.SyncEvents {
		for _, m := range msgs {
			s.EmitMessage(m)
		}
		return
	}
	var wg sync.WaitGroup
	handlers := s.snapshot()
	for _, m := range msgs {
		evt := &discordgo.MessageCreate{Message: m}
		for _, h := range handlers {
			fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate))
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				fn(nil, evt)
			}()
		}
	}
	wg.Wait()
}

func (s *Session) snapshot() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interface{}, 0, len(s.handlers))
	for id := 0; id < s.nextID; id++ {
		if h, ok := s.handlers[id]; ok {
			out = append(out, h)
		}
	}
	return out
}
