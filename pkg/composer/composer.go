// Package composer is the state machine behind every create/edit form:
// hidden, drafting, submitting, then back to hidden on success or to
// drafting with an error on failure.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/imeyer/leaseqa/pkg/api"
)

type State int

const (
	Hidden State = iota
	Drafting
	Submitting
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Drafting:
		return "drafting"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// GenericError is shown when a failed submission carries no usable
// backend message.
const GenericError = "Something went wrong. Please try again."

var (
	// ErrValidation wraps field errors found before any network call.
	ErrValidation  = errors.New("validation failed")
	ErrNotDrafting = errors.New("composer is not drafting")
)

// Draft is a form's content.
type Draft interface {
	// Normalize trims and canonicalizes input before validation.
	Normalize()
	Validate() error
}

// Defaulter is implemented by drafts with submit-time defaults.
type Defaulter interface {
	ApplyDefaults()
}

type SubmitFunc func(ctx context.Context, d Draft) error

// Composer is used from a single request goroutine and is not safe for
// concurrent use.
type Composer struct {
	state     State
	draft     Draft
	err       string
	fieldErrs validation.Errors
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{state: Hidden, logger: logger}
}

// Open starts drafting d.
func (c *Composer) Open(d Draft) {
	c.state = Drafting
	c.draft = d
	c.err = ""
	c.fieldErrs = nil
}

// Cancel discards the draft.
func (c *Composer) Cancel() {
	c.state = Hidden
	c.draft = nil
	c.err = ""
	c.fieldErrs = nil
}

func (c *Composer) State() State { return c.state }

// Draft returns the current draft. After a successful submit it stays
// readable until Cancel or Open.
func (c *Composer) Draft() Draft { return c.draft }

// Message is the form-level error of the last failed submit.
func (c *Composer) Message() string { return c.err }

// FieldError returns the validation message for one field, keyed by its
// json name.
func (c *Composer) FieldError(field string) string {
	if c.fieldErrs == nil {
		return ""
	}
	if err, ok := c.fieldErrs[field]; ok && err != nil {
		return err.Error()
	}
	return ""
}

// FieldErrors returns every field message of the last failed submit.
func (c *Composer) FieldErrors() map[string]string {
	out := make(map[string]string, len(c.fieldErrs))
	for field, err := range c.fieldErrs {
		if err != nil {
			out[field] = err.Error()
		}
	}
	return out
}

// Submit validates the draft and, if it is valid, hands it to fn. fn is
// never called for an invalid draft. On failure the draft is kept and the
// composer returns to drafting with a displayable error.
func (c *Composer) Submit(ctx context.Context, fn SubmitFunc) error {
	if c.state != Drafting || c.draft == nil {
		return ErrNotDrafting
	}
	c.state = Submitting
	c.err = ""
	c.fieldErrs = nil

	c.draft.Normalize()
	if err := c.draft.Validate(); err != nil {
		c.state = Drafting
		var fe validation.Errors
		if errors.As(err, &fe) {
			c.fieldErrs = fe
		}
		c.err = err.Error()
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if d, ok := c.draft.(Defaulter); ok {
		d.ApplyDefaults()
	}

	if err := fn(ctx, c.draft); err != nil {
		c.state = Drafting
		c.err = api.MessageOf(err, GenericError)
		c.logger.WarnContext(ctx, "submission failed",
			slog.String("error", err.Error()),
			slog.String("draft", fmt.Sprintf("%T", c.draft)))
		return err
	}

	c.state = Hidden
	return nil
}

// FollowUp runs a best-effort secondary call after a successful submit,
// such as an attachment upload. Failures are logged and swallowed; the
// created resource stays.
func (c *Composer) FollowUp(ctx context.Context, what string, fn func(context.Context) error) {
	if c.state != Hidden || c.draft == nil {
		return
	}
	if err := fn(ctx); err != nil {
		c.logger.WarnContext(ctx, "best-effort follow-up failed",
			slog.String("step", what),
			slog.String("error", err.Error()))
	}
}
