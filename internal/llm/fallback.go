package llm

import (
	"context"
	"time"

	"github.com/daydemir/gass/internal/errors"
	"github.com/daydemir/gass/internal/logging"
)

// Fallback tries Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   Agent
	Secondary Agent
	Logger    *logging.Logger
}

// NewFallback creates a Fallback. A nil secondary makes it a plain
// wrapper around primary.
func NewFallback(primary, secondary Agent, logger *logging.Logger) *Fallback {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

// NewTimedFallback bounds each attempt by its own timeout, so a primary
// that runs out its deadline still leaves the secondary a full one.
// A nil secondary yields a Fallback around the timed primary only.
func NewTimedFallback(primary, secondary Agent, after time.Duration, logger *logging.Logger) *Fallback {
	if secondary != nil {
		secondary = &Timeout{Agent: secondary, After: after}
	}
	return NewFallback(&Timeout{Agent: primary, After: after}, secondary, logger)
}

func (f *Fallback) Name() string {
	if f.Secondary == nil {
		return f.Primary.Name()
	}
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Invoke returns the primary result, or the secondary result when the
// primary errors. Both failing yields an AgentError carrying both causes.
func (f *Fallback) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error) {
	res, err := f.Primary.Invoke(ctx, prompt, opts)
	if err == nil {
		return res, nil
	}
	primaryErr := errors.NewAgentError(f.Primary.Name(), err)
	if f.Secondary == nil || ctx.Err() != nil {
		return nil, primaryErr
	}

	f.Logger.Warn("agent failed, falling back", "agent", f.Primary.Name(), "fallback", f.Secondary.Name(), "error", err)
	res, err = f.Secondary.Invoke(ctx, prompt, opts)
	if err != nil {
		return nil, errors.Join(primaryErr, errors.NewAgentError(f.Secondary.Name(), err))
	}
	return res, nil
}

// Timeout bounds every invocation of Agent by After. Zero disables it.
type Timeout struct {
	Agent Agent
	After time.Duration
}

func (t *Timeout) Name() string {
	return t.Agent.Name()
}

func (t *Timeout) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Result, error) {
	if t.After <= 0 {
		return t.Agent.Invoke(ctx, prompt, opts)
	}
	ctx, cancel := context.WithTimeout(ctx, t.After)
	defer cancel()
	return t.Agent.Invoke(ctx, prompt, opts)
}
