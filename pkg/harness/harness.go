// Package harness drives one scenario at a time against a live shim: it
// binds the shim to a channel, watches that channel through a scraper,
// emits one command and waits for what Discord shows afterwards.
package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sipeed/shimharness/pkg/config"
	"github.com/sipeed/shimharness/pkg/logger"
	"github.com/sipeed/shimharness/pkg/messages"
	"github.com/sipeed/shimharness/pkg/scraper"
	"github.com/sipeed/shimharness/pkg/shimclient"
)

const DefaultMessageTimeout = 300 * time.Second

// SessionFactory builds the Discord session a scraper runs on.
type SessionFactory func(token string) (scraper.Session, error)

type Options struct {
	Host        string
	Port        int
	DialTimeout time.Duration

	ChannelID string
	Token     string

	ReadyTimeout   time.Duration
	MessageTimeout time.Duration

	// NewSession defaults to a real discordgo session.
	NewSession SessionFactory

	// Component tags every log line of this harness.
	Component string
}

// OptionsFromConfig maps loaded configuration onto harness options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Host:           cfg.Shim.Host,
		Port:           cfg.Shim.Port,
		DialTimeout:    cfg.Shim.DialTimeout,
		ChannelID:      cfg.Discord.ChannelID,
		Token:          cfg.Discord.Token,
		ReadyTimeout:   cfg.Harness.ReadyTimeout,
		MessageTimeout: cfg.Harness.MessageTimeout,
	}
}

func discordSession(token string) (scraper.Session, error) {
	return scraper.NewDiscordSession(token)
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 60 * time.Second
	}
	if o.MessageTimeout <= 0 {
		o.MessageTimeout = DefaultMessageTimeout
	}
	if o.NewSession == nil {
		o.NewSession = discordSession
	}
	if o.Component == "" {
		o.Component = "harness"
	}
	return o
}

// Harness owns the client and scraper of exactly one scenario. It is not
// safe for concurrent use.
type Harness struct {
	opts     Options
	client   *shimclient.Client
	scraper  *scraper.Scraper
	tornDown bool
}

func New(opts Options) *Harness {
	return &Harness{opts: opts.withDefaults()}
}

func (h *Harness) channel() (uint64, error) {
	id, err := strconv.ParseUint(h.opts.ChannelID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q: %w", h.opts.ChannelID, err)
	}
	return id, nil
}

// Connect dials the shim without binding it to a channel.
func (h *Harness) Connect(ctx context.Context) error {
	if h.client != nil {
		return errors.New("harness already connected")
	}
	client, err := shimclient.Dial(ctx, h.opts.Host, h.opts.Port, h.opts.DialTimeout)
	if err != nil {
		logger.ErrorCF(h.opts.Component, "Shim connection failed", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	h.client = client
	return nil
}

// Setup dials the shim and binds it to the target channel.
func (h *Harness) Setup(ctx context.Context) error {
	id, err := h.channel()
	if err != nil {
		return err
	}
	if err := h.Connect(ctx); err != nil {
		return err
	}
	if err := h.client.Send(messages.NewSettings(id)); err != nil {
		return err
	}
	logger.InfoCF(h.opts.Component, "Shim bound to channel", map[string]interface{}{
		"addr":    h.client.Addr(),
		"channel": h.opts.ChannelID,
	})
	return nil
}

// StartScraper starts watching the target channel and blocks until the
// session is ready or the ready timeout passes.
func (h *Harness) StartScraper(ctx context.Context) error {
	if h.scraper != nil {
		return errors.New("scraper already started")
	}
	if _, err := h.channel(); err != nil {
		return err
	}

	session, err := h.opts.NewSession(h.opts.Token)
	if err != nil {
		return err
	}
	s := scraper.New(session, h.opts.ChannelID)
	if err := s.Start(ctx); err != nil {
		return err
	}
	h.scraper = s

	readyCtx, cancel := context.WithTimeout(ctx, h.opts.ReadyTimeout)
	defer cancel()
	err = s.WaitReady(readyCtx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return &ReadyTimeoutError{Timeout: h.opts.ReadyTimeout}
	default:
		return err
	}
}

// Send emits one command to the shim.
func (h *Harness) Send(cmd *messages.Response) error {
	if h.client == nil {
		return errors.New("harness not connected")
	}
	return h.client.Send(cmd)
}

// AwaitMessages blocks until at least n messages have been captured. The
// messages seen so far are returned with any error.
func (h *Harness) AwaitMessages(ctx context.Context, n int) ([]scraper.Message, error) {
	if h.scraper == nil {
		return nil, errors.New("scraper not started")
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.opts.MessageTimeout)
	defer cancel()

	msgs, err := h.scraper.WaitForMessages(waitCtx, n)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = &MessageTimeoutError{Expected: n, Observed: len(msgs), Timeout: h.opts.MessageTimeout}
	}
	if err != nil {
		logger.WarnCF(h.opts.Component, "Waiting for messages failed", map[string]interface{}{
			"expected": n,
			"observed": len(msgs),
			"error":    err.Error(),
		})
		return msgs, err
	}

	logger.DebugCF(h.opts.Component, "Messages arrived", map[string]interface{}{
		"expected": n,
		"observed": len(msgs),
	})
	return msgs, nil
}

// Messages returns what the scraper has captured so far.
func (h *Harness) Messages() []scraper.Message {
	if h.scraper == nil {
		return nil
	}
	return h.scraper.Snapshot()
}

// Teardown stops and joins the scraper, then closes the shim connection.
// Calling it again does nothing.
func (h *Harness) Teardown() error {
	if h.tornDown {
		return nil
	}
	h.tornDown = true

	h.stopScraper()
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("failed to close shim connection: %w", err)
		}
	}
	return nil
}

// stopScraper stops and joins the scraper so its buffer no longer changes.
func (h *Harness) stopScraper() {
	if h.scraper == nil {
		return
	}
	h.scraper.Stop()
	if err := h.scraper.Wait(); err != nil {
		logger.DebugCF(h.opts.Component, "Scraper ended with error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Run executes one scenario on this harness and tears it down afterwards.
// Once the expected count has arrived the scraper is stopped, and the frozen
// buffer must hold exactly that many messages before Check sees it. A
// teardown failure is returned when the scenario itself succeeded.
func (h *Harness) Run(ctx context.Context, sc Scenario, fx Fixtures) (msgs []scraper.Message, err error) {
	defer func() {
		if terr := h.Teardown(); terr != nil {
			logger.WarnCF(h.opts.Component, "Teardown failed", map[string]interface{}{
				"scenario": sc.Name,
				"error":    terr.Error(),
			})
			if err == nil {
				err = terr
			}
		}
	}()

	if sc.SkipSetup {
		if err := h.Connect(ctx); err != nil {
			return nil, err
		}
	} else if err := h.Setup(ctx); err != nil {
		return nil, err
	}

	if !sc.SkipScraper {
		if err := h.StartScraper(ctx); err != nil {
			return nil, err
		}
	}

	if err := h.Send(sc.Build(fx)); err != nil {
		return nil, err
	}

	if sc.SkipScraper || sc.Expect <= 0 {
		return nil, nil
	}

	if msgs, err := h.AwaitMessages(ctx, sc.Expect); err != nil {
		return msgs, err
	}
	h.stopScraper()
	msgs = h.Messages()

	if err := exactly(msgs, sc.Expect); err != nil {
		return msgs, err
	}
	if sc.Check != nil {
		if err := sc.Check(msgs); err != nil {
			return msgs, err
		}
	}
	return msgs, nil
}
