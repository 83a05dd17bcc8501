package parser

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DefaultMaxDepth is the default limit on nested at-rule blocks.
const DefaultMaxDepth = 64

// MaxDepthLimit is the largest nesting limit WithMaxDepth accepts.
const MaxDepthLimit = 4096

// UnsupportedSyntaxPolicy selects what happens to selector syntax the rule
// tree cannot represent.
type UnsupportedSyntaxPolicy int

const (
	// FailOnUnsupported reports ErrUnsupportedSelectorSyntax and skips the rule.
	FailOnUnsupported UnsupportedSyntaxPolicy = iota

	// SkipUnsupported drops the construct, logs a warning and records a
	// diagnostic.
	SkipUnsupported
)

var policies = map[string]UnsupportedSyntaxPolicy{
	"fail": FailOnUnsupported,
	"skip": SkipUnsupported,
}

// String returns the policy name.
func (p UnsupportedSyntaxPolicy) String() string {
	for name, v := range policies {
		if v == p {
			return name
		}
	}
	return fmt.Sprintf("UnsupportedSyntaxPolicy(%d)", int(p))
}

// ParseUnsupportedSyntaxPolicy returns the policy named "fail" or "skip".
func ParseUnsupportedSyntaxPolicy(s string) (UnsupportedSyntaxPolicy, error) {
	p, ok := policies[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown unsupported-syntax policy %q", s)
	}
	return p, nil
}

// Option configures a parse.
type Option func(*config)

type config struct {
	maxDepth      int
	policy        UnsupportedSyntaxPolicy
	strict        bool
	customAtRules bool
	logger        *slog.Logger
}

func newConfig(opts []Option) config {
	c := config{
		maxDepth:      DefaultMaxDepth,
		customAtRules: true,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithMaxDepth limits how deeply at-rule blocks may nest. Values above
// MaxDepthLimit are lowered to it.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = min(n, MaxDepthLimit)
		}
	}
}

// WithUnsupportedSyntax sets the policy for unsupported selector syntax.
func WithUnsupportedSyntax(p UnsupportedSyntaxPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithStrict makes every fault abort the parse.
func WithStrict(strict bool) Option {
	return func(c *config) { c.strict = strict }
}

// WithCustomAtRules enables the @value and @use directives.
func WithCustomAtRules(enabled bool) Option {
	return func(c *config) { c.customAtRules = enabled }
}

// WithLogger sets the logger for debug and warning records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
