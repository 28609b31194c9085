package guardrails

import (
	"errors"
	"sync"

	"github.com/halcyon-ai/sentry/internal/detect"
	"github.com/halcyon-ai/sentry/internal/metrics"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an administrative operation names an unknown
// guardrail.
var ErrNotFound = errors.New("guardrail not found")

// Action taken when a guardrail's predicate fails.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionWarn   Action = "warn"
	ActionBlock  Action = "block"
	ActionRedact Action = "redact"
)

// Context is the request evaluation context guardrail predicates run over.
type Context struct {
	Prompt      string
	PII         detect.PIIFindings
	Security    detect.SecurityAssessment
	RateLimited bool
	Toxicity    bool
}

// Rule is a single named guardrail. Check returns true when the request
// passes the rule.
type Rule struct {
	Name        string
	Description string
	Action      Action
	Check       func(*Context) bool

	enabled bool
}

// RuleStatus is the externally visible state of a rule.
type RuleStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Action      Action `json:"action"`
	Enabled     bool   `json:"enabled"`
}

// Verdict is the aggregate outcome of evaluating all enabled guardrails.
type Verdict struct {
	Passed    bool
	Action    Action
	Triggered []string // names of every failing enabled rule, in order
	Warnings  []string // subset with ActionWarn
}

// Config holds the thresholds the default rule set closes over.
type Config struct {
	PIIBlockThreshold int     // block when PII count exceeds this
	MinSecurityScore  float64 // block below this security score
	MaxPromptLength   int
	FailOpen          bool // predicate panic counts as passed when true
}

// DefaultConfig returns the stock thresholds with fail-open enabled.
func DefaultConfig() Config {
	return Config{
		PIIBlockThreshold: 3,
		MinSecurityScore:  0.3,
		MaxPromptLength:   10000,
		FailOpen:          true,
	}
}

// Engine evaluates an ordered, named rule list against request context.
// Registration order is significant: evaluation and reporting both follow it.
type Engine struct {
	mu       sync.RWMutex
	rules    []*Rule
	failOpen bool
	recorder metrics.Recorder
	logger   *zap.Logger
}

// NewEngine creates an engine with the default rule set.
func NewEngine(cfg Config, recorder metrics.Recorder, logger *zap.Logger) *Engine {
	e := &Engine{
		failOpen: cfg.FailOpen,
		recorder: recorder,
		logger:   logger,
	}
	e.registerDefaults(cfg)
	return e
}

func (e *Engine) registerDefaults(cfg Config) {
	e.Register(&Rule{
		Name:        "pii_protection",
		Description: "Block requests with excessive PII",
		Action:      ActionBlock,
		Check: func(ctx *Context) bool {
			return ctx.PII.Count() <= cfg.PIIBlockThreshold
		},
	})
	e.Register(&Rule{
		Name:        "injection_protection",
		Description: "Block prompt injection attempts",
		Action:      ActionBlock,
		Check: func(ctx *Context) bool {
			return ctx.Security.Score >= cfg.MinSecurityScore
		},
	})
	e.Register(&Rule{
		Name:        "toxicity_filter",
		Description: "Warn on potentially toxic content",
		Action:      ActionWarn,
		Check: func(ctx *Context) bool {
			return !ctx.Toxicity
		},
	})
	e.Register(&Rule{
		Name:        "rate_limit",
		Description: "Enforce rate limiting",
		Action:      ActionBlock,
		Check: func(ctx *Context) bool {
			return !ctx.RateLimited
		},
	})
	e.Register(&Rule{
		Name:        "prompt_length",
		Description: "Limit prompt length",
		Action:      ActionBlock,
		Check: func(ctx *Context) bool {
			return len(ctx.Prompt) <= cfg.MaxPromptLength
		},
	})
}

// Register appends a rule, enabled, at the end of the evaluation order.
func (e *Engine) Register(r *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r.enabled = true
	e.rules = append(e.rules, r)
}

// Evaluate runs every enabled guardrail in registration order. A predicate
// panic is resolved by the fail-open/fail-closed policy: fail-open treats
// the rule as satisfied, fail-closed as failed. All failing rules are
// recorded in Triggered even though a single BLOCK already rejects the
// request; WARN failures additionally accumulate in Warnings.
func (e *Engine) Evaluate(ctx *Context) Verdict {
	e.mu.RLock()
	defer e.mu.RUnlock()

	verdict := Verdict{Passed: true, Action: ActionAllow}

	for _, rule := range e.rules {
		if !rule.enabled {
			continue
		}

		passed := e.runCheck(rule, ctx)
		if passed {
			continue
		}

		verdict.Triggered = append(verdict.Triggered, rule.Name)
		e.recorder.GuardrailTriggered(rule.Name, string(rule.Action))

		switch rule.Action {
		case ActionBlock:
			verdict.Passed = false
			verdict.Action = ActionBlock
			e.recorder.GuardrailBlocked(rule.Name)
		case ActionWarn:
			verdict.Warnings = append(verdict.Warnings, rule.Name)
		}
	}

	return verdict
}

func (e *Engine) runCheck(rule *Rule, ctx *Context) (passed bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("guardrail predicate panicked",
				zap.String("guardrail", rule.Name),
				zap.Any("panic", r),
				zap.Bool("fail_open", e.failOpen),
			)
			passed = e.failOpen
		}
	}()
	return rule.Check(ctx)
}

// SetEnabled flips a rule's enabled flag. Idempotent; unknown names return
// ErrNotFound.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range e.rules {
		if rule.Name == name {
			rule.enabled = enabled
			return nil
		}
	}
	return ErrNotFound
}

// List returns the rules with their status, in registration order.
func (e *Engine) List() []RuleStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RuleStatus, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, RuleStatus{
			Name:        rule.Name,
			Description: rule.Description,
			Action:      rule.Action,
			Enabled:     rule.enabled,
		})
	}
	return out
}

// EnabledCount returns how many rules are currently enabled.
func (e *Engine) EnabledCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, rule := range e.rules {
		if rule.enabled {
			n++
		}
	}
	return n
}
