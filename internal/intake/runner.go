package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/document"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
)

type RunnerConfig struct {
	PollInterval  time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

func (c *RunnerConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = 5 * time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 5 * time.Minute
	}
}

// Runner drives intake sources: it connects each source, polls on an
// interval, and deposits every attachment as a stored document plus an
// inbound message row. Connection state lives here, not in the sources.
type Runner struct {
	sources  []Source
	store    document.Store
	messages repository.MessageRepository
	logger   *logger.Logger
	config   RunnerConfig
}

func NewRunner(sources []Source, store document.Store, messages repository.MessageRepository, log *logger.Logger, config RunnerConfig) *Runner {
	config.defaults()
	return &Runner{
		sources:  sources,
		store:    store,
		messages: messages,
		logger:   log,
		config:   config,
	}
}

// Start runs one polling loop per source and blocks until ctx is cancelled,
// even when no sources are registered yet.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range r.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			r.run(ctx, src)
		}(src)
	}
	wg.Wait()
	<-ctx.Done()
}

func (r *Runner) run(ctx context.Context, src Source) {
	backoff := r.config.ReconnectBase
	for {
		if err := src.Connect(ctx); err != nil {
			r.logger.Error(err, fmt.Sprintf("intake %s: connect failed, retrying in %s", src.Channel(), backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, r.config.ReconnectMax)
			continue
		}
		backoff = r.config.ReconnectBase

		if !r.pollLoop(ctx, src) {
			src.Close()
			return
		}
		// pollLoop returned on a poll error; reconnect.
		src.Close()
	}
}

// pollLoop polls until the context ends (returns false) or a poll fails
// (returns true, meaning reconnect).
func (r *Runner) pollLoop(ctx context.Context, src Source) bool {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		attachments, err := src.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			r.logger.Error(err, fmt.Sprintf("intake %s: poll failed", src.Channel()))
			return true
		}
		for _, att := range attachments {
			if err := r.deposit(ctx, src.Channel(), att); err != nil {
				r.logger.Error(err, fmt.Sprintf("intake %s: failed to deposit attachment from %s", src.Channel(), att.Sender))
			}
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (r *Runner) deposit(ctx context.Context, channel model.IntakeChannel, att Attachment) error {
	ref := fmt.Sprintf("inbound/%s/%s-%s", channel, uuid.New(), att.Filename)
	if err := r.store.Put(ctx, ref, att.ContentType, att.Content); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	msg := &model.InboundMessage{
		Sender:      att.Sender,
		Channel:     channel,
		DocumentRef: ref,
		ReceivedAt:  att.ReceivedAt,
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to record inbound message: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
