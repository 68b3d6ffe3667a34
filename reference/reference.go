// Package reference generates transaction references for callers that do not
// supply their own. References are time-ordered and collision-resistant: a
// timestamp prefix for operators reading logs, a snowflake suffix for
// uniqueness across concurrent callers.
package reference

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Generator produces reference strings. Safe for concurrent use.
type Generator struct {
	node *snowflake.Node
	now  func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock substitutes the wall clock, for deterministic prefixes in tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator builds a Generator. machineID distinguishes concurrent
// processes sharing a provider account; 0 is fine for a single process.
func NewGenerator(machineID int64, opts ...Option) (*Generator, error) {
	node, err := snowflake.NewNode(machineID)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	g := &Generator{node: node, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RequestID returns a dotted-timestamp reference in the shape the OTP
// providers expect for request-id fields, e.g.
// "2026.08.31.14.02.05.000123.8f2k1c".
func (g *Generator) RequestID() string {
	t := g.now()
	return fmt.Sprintf("%s%06d.%s",
		t.Format("2006.01.02.15.04.05."),
		t.Nanosecond()/1000,
		g.node.Generate().Base36(),
	)
}

// TransactionID returns an invoice transaction id in the aggregator's
// customary shape, e.g. "LDG20260831.140205.C8f2k1c".
func (g *Generator) TransactionID() string {
	t := g.now()
	return fmt.Sprintf("LDG%s.%s.C%s",
		t.Format("20060102"),
		t.Format("150405"),
		g.node.Generate().Base36(),
	)
}
