// Package commit turns an import session into one batch import call and interprets
// the imported/rejected counts the backend answers with.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"adonel/internal/logger"
	"adonel/internal/notify"
	"adonel/internal/session"
	"adonel/pkg/models"
	"adonel/pkg/services"
)

// DefaultClearDelay is how long a committed session stays visible before it is cleared.
const DefaultClearDelay = 2 * time.Second

// ErrNothingToImport is returned, before any network call, when no record is importable.
var ErrNothingToImport = errors.New("no importable records")

// Options tune one commit. The zero value validates duplicates on the backend.
type Options struct {
	// SkipDuplicateCheck turns off the backend's duplicate validation.
	SkipDuplicateCheck bool

	// AllowPartial lets the backend keep the accepted lines of a batch with rejections.
	AllowPartial bool
}

func (o Options) importOptions() services.ImportOptions {
	return services.ImportOptions{
		ValidateDuplicates: !o.SkipDuplicateCheck,
		AllowPartial:       o.AllowPartial,
	}
}

// Outcome describes a batch the backend answered.
type Outcome struct {
	Kind     models.Kind `json:"kind"`
	Sent     int         `json:"sent"`
	Imported int         `json:"imported"`
	Rejected int         `json:"rejected"`
	Partial  bool        `json:"partial"`

	Notification   notify.Notification `json:"notification"`
	ClearScheduled bool                `json:"clearScheduled"`
}

// Error is a failed commit. The session was left as it was.
type Error struct {
	Op           string
	Kind         models.Kind
	Err          error
	Notification notify.Notification
}

func (e *Error) Error() string {
	return fmt.Sprintf("commit: %s %s failed: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to the user for this failure.
func (e *Error) UserMessage() string {
	return UserMessage(e.Kind, e.Err)
}

// Controller commits sessions.
type Controller struct {
	svc        services.ImportService
	notifier   notify.Notifier
	clearDelay time.Duration
	afterFunc  func(d time.Duration, f func())
	log        zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClearDelay sets the delay between a successful commit and the session reset.
// Zero clears immediately.
func WithClearDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.clearDelay = d
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithAfterFunc replaces the timer used to schedule the reset.
func WithAfterFunc(fn func(d time.Duration, f func())) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

// NewController creates a controller. A nil notifier discards notifications.
func NewController(svc services.ImportService, notifier notify.Notifier, opts ...Option) *Controller {
	if notifier == nil {
		notifier = notify.Discard
	}
	c := &Controller{
		svc:        svc,
		notifier:   notifier,
		clearDelay: DefaultClearDelay,
		afterFunc:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		log:        logger.WithComponent("commit"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit sends every importable record of store in one request.
//
// The session is not modified by a failed commit. After a successful one (including a
// partial success) the session is cleared once the delay elapses, unless the user
// changed it in the meantime.
func (c *Controller) Commit(ctx context.Context, store *session.Store, opts Options) (*Outcome, error) {
	const op = "Commit"

	kind := store.Kind()
	log := c.log.With().Str("session_id", store.ID()).Str("kind", string(kind)).Logger()

	var (
		outcome  *Outcome
		revision uint64
	)
	err := store.Do(ctx, func(ctx context.Context) error {
		records, rev := store.Snapshot()
		revision = rev

		batch, err := BuildBatch(kind, records, opts)
		if err != nil {
			return err
		}

		log.Info().
			Int("records", len(records)).
			Int("sent", batch.Len()).
			Bool("validate_duplicates", batch.Options.ValidateDuplicates).
			Msg("Submitting batch import")

		result, err := c.svc.ImportBatch(ctx, batch)
		if err != nil {
			return err
		}

		outcome = &Outcome{
			Kind:     kind,
			Sent:     batch.Len(),
			Imported: result.Imported,
			Rejected: result.Rejected,
			Partial:  result.Rejected > 0,
		}
		return nil
	})
	if err != nil {
		cerr := &Error{Op: op, Kind: kind, Err: err}
		cerr.Notification = notify.ImportFailed(cerr.UserMessage())
		c.notifier.Notify(ctx, cerr.Notification)

		log.Error().Err(err).Msg("Batch import failed")
		return nil, cerr
	}

	if outcome.Partial {
		outcome.Notification = notify.ImportPartial(kind, outcome.Imported, outcome.Rejected)
	} else {
		outcome.Notification = notify.ImportSucceeded(kind, outcome.Imported)
	}
	c.notifier.Notify(ctx, outcome.Notification)

	outcome.ClearScheduled = true
	c.scheduleClear(store, revision, log)

	log.Info().
		Int("imported", outcome.Imported).
		Int("rejected", outcome.Rejected).
		Dur("clear_delay", c.clearDelay).
		Msg("Batch import completed")

	return outcome, nil
}

func (c *Controller) scheduleClear(store *session.Store, revision uint64, log zerolog.Logger) {
	reset := func() {
		if !store.ClearIfUnchanged(revision) {
			log.Debug().Msg("Session changed after commit, not clearing")
		}
	}
	if c.clearDelay == 0 {
		reset()
		return
	}
	c.afterFunc(c.clearDelay, reset)
}

// UserMessage maps a commit failure to the text shown to the user.
func UserMessage(kind models.Kind, err error) string {
	if errors.Is(err, ErrNothingToImport) {
		return fmt.Sprintf("Nenhuma %s válida para importar", kind.Noun())
	}
	if errors.Is(err, session.ErrBusy) {
		return "Aguarde a operação em andamento terminar"
	}
	if errors.Is(err, session.ErrClosed) {
		return "A sessão de importação foi encerrada"
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}
