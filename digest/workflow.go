package digest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"

	"github.com/ndhoang/digestbus"
)

// state is one step of a single run. Each delivered ScheduledRun walks
// CheckActive -> FetchContent -> Summarize -> Render -> Deliver ->
// Reschedule; Halted, Failed and Completed are terminal.
type state int

const (
	stateCheckActive state = iota
	stateFetchContent
	stateSummarize
	stateRender
	stateDeliver
	stateReschedule
	stateHalted
	stateFailed
	stateCompleted
)

// Workflow produces and sends one digest per delivered ScheduledRun and
// emits the event for the next one. It holds no per-run state; every
// invocation is independent.
type Workflow struct {
	Subscriptions digestbus.SubscriptionService
	Content       digestbus.ContentProvider
	Summarizer    digestbus.Summarizer
	Newsletter    digestbus.NewsletterService
	Bus           digestbus.EventBus
	Schedule      digestbus.Schedule
	Logger        zerolog.Logger

	// Now is swappable in tests
	Now func() time.Time
}

// Register wires the workflow as the handler for scheduled runs
func (w *Workflow) Register(bus digestbus.EventBus) {
	bus.OnEvent(digestbus.EventDigestSchedule, w.Handle)
}

// Handle decodes a delivered event and runs the state machine
func (w *Workflow) Handle(ctx context.Context, payload json.RawMessage) error {
	var run digestbus.ScheduledRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return &digestbus.Error{Op: "Workflow.Handle", Err: err}
	}

	return w.Run(ctx, run)
}

// Run executes one digest cycle. Only a failed reschedule emit returns an
// error; every other failure either halts the run (inactive user) or is
// logged and absorbed so the subscription chain never stalls on one bad
// cycle.
func (w *Workflow) Run(ctx context.Context, run digestbus.ScheduledRun) error {
	logger := w.Logger.With().
		Str("run_id", uuid.NewV4().String()).
		Str("user_id", run.UserID).
		Logger()

	var (
		sub      *digestbus.Subscription
		articles []digestbus.Article
		summary  string
		html     string
		failed   bool
	)

	for st := stateCheckActive; ; {
		switch st {
		case stateCheckActive:
			// The payload is a snapshot; the store decides whether this
			// run still happens. A store error counts as inactive: better
			// a missed delivery than mail to a deactivated user.
			s, err := w.Subscriptions.FindByUserID(run.UserID)
			if err != nil {
				logger.Error().Err(err).Msg("activity check failed, treating as inactive")
				st = stateHalted
				continue
			}
			if s == nil || !s.IsActive {
				logger.Info().Msg("subscription inactive, halting run")
				st = stateHalted
				continue
			}
			sub = s
			st = stateFetchContent

		case stateFetchContent:
			items, err := w.Content.Fetch(ctx, sub.Categories)
			if err != nil {
				logger.Error().Err(err).Msg("content fetch failed, skipping this cycle")
				sentry.CaptureException(err)
				failed = true
				st = stateReschedule
				continue
			}
			articles = items
			logger.Info().Int("articles", len(articles)).Msg("fetched content")
			st = stateSummarize

		case stateSummarize:
			text, err := w.Summarizer.Summarize(ctx, articles, sub.Categories)
			if err != nil {
				logger.Error().Err(err).Msg("summarization failed, no digest this cycle")
				sentry.CaptureException(err)
				failed = true
				st = stateReschedule
				continue
			}
			summary = text
			st = stateRender

		case stateRender:
			html = digestbus.RenderMarkdown(summary)
			st = stateDeliver

		case stateDeliver:
			if err := w.Newsletter.SendDigest(sub.Email, sub.Categories, len(articles), html); err != nil {
				logger.Error().Err(err).Msg("digest delivery failed")
				sentry.CaptureException(err)
				failed = true
			} else {
				logger.Info().Str("email", sub.Email).Msg("digest sent")
			}
			st = stateReschedule

		case stateReschedule:
			next := w.Schedule.Next(w.now(), run.Frequency)
			err := w.Bus.Emit(ctx, digestbus.EventDigestSchedule, run.UserID, digestbus.ScheduledRun{
				UserID:     run.UserID,
				Categories: run.Categories,
				Frequency:  run.Frequency,
				Email:      run.Email,
			}, next)
			if err != nil {
				// The one true stall condition; hand it back to the bus's
				// own retry policy.
				return &digestbus.Error{Op: "Workflow.Reschedule", Err: err}
			}
			logger.Info().Time("next_fire_at", next).Msg("next run scheduled")
			if failed {
				st = stateFailed
			} else {
				st = stateCompleted
			}

		case stateHalted, stateFailed, stateCompleted:
			return nil
		}
	}
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
