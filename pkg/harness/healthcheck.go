package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/shimharness/pkg/logger"
	"github.com/sipeed/shimharness/pkg/messages"
	"github.com/sipeed/shimharness/pkg/shimclient"
)

// ErrFlagNotSeen means the shim never echoed the healthcheck flag back.
var ErrFlagNotSeen = errors.New("healthcheck flag not echoed by shim")

type HealthcheckOptions struct {
	Host        string
	Port        int
	DialTimeout time.Duration
	ChannelID   uint64

	// Attempts bounds how many frames are read while looking for the flag.
	Attempts int
	// ReadTimeout applies to each frame. Zero waits indefinitely.
	ReadTimeout time.Duration
}

// Healthcheck posts an embed titled with a fresh flag and succeeds when the
// shim relays that flag back as a command.
func Healthcheck(ctx context.Context, opts HealthcheckOptions) error {
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}

	client, err := shimclient.Dial(ctx, opts.Host, opts.Port, opts.DialTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	flag := uuid.NewString()
	if err := client.Send(messages.NewSettings(opts.ChannelID)); err != nil {
		return err
	}
	if err := client.Send(messages.NewEmbed(messages.EmbedContent{Title: flag})); err != nil {
		return err
	}

	for i := 0; i < opts.Attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := client.Receive(opts.ReadTimeout)
		if err != nil {
			return err
		}
		if req.Command == flag {
			logger.InfoCF("healthcheck", "Flag echoed", map[string]interface{}{
				"addr":     client.Addr(),
				"attempts": i + 1,
			})
			return nil
		}
		logger.DebugCF("healthcheck", "Ignoring request", map[string]interface{}{
			"user":    req.User,
			"command": req.Command,
		})
	}
	return fmt.Errorf("%w after %d requests", ErrFlagNotSeen, opts.Attempts)
}
