// Package sequence issues human-readable document numbers of the form
// PREFIX-YYYYMMNNN, e.g. PO-202610007.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
)

// Module provides the process-wide Sequencer.
var Module = fx.Provide(New)

// Loader returns the numbers already issued for one tenant and prefix.
type Loader func(ctx context.Context) ([]string, error)

type key struct {
	tenant string
	prefix string
}

type counter struct {
	mu     sync.Mutex
	seeded bool
	last   int
}

// Sequencer keeps one counter per tenant and prefix. Counters are seeded
// from storage on first use, only ever increase, and do not restart at a
// month boundary.
type Sequencer struct {
	mu       sync.Mutex
	counters map[key]*counter
}

// New returns an empty Sequencer.
func New() *Sequencer {
	return &Sequencer{counters: make(map[key]*counter)}
}

func (s *Sequencer) counter(tenant, prefix string) *counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{tenant: tenant, prefix: prefix}
	c, ok := s.counters[k]
	if !ok {
		c = &counter{}
		s.counters[k] = c
	}
	return c
}

// Next returns the next number for tenant, stamped with the month of at.
// load is called once per tenant and prefix; if it fails the counter stays
// unseeded and the next call retries.
func (s *Sequencer) Next(ctx context.Context, tenant, prefix string, at time.Time, load Loader) (string, error) {
	c := s.counter(tenant, prefix)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeded {
		existing, err := load(ctx)
		if err != nil {
			return "", err
		}
		for _, number := range existing {
			if seq, ok := Parse(prefix, number); ok && seq > c.last {
				c.last = seq
			}
		}
		c.seeded = true
	}

	c.last++
	return Format(prefix, at, c.last), nil
}

// Format renders a document number.
func Format(prefix string, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d%02d%03d", prefix, at.Year(), int(at.Month()), seq)
}

// Parse extracts the sequence part of a number issued with prefix.
func Parse(prefix, number string) (int, bool) {
	rest, ok := strings.CutPrefix(number, prefix+"-")
	if !ok || len(rest) <= 6 {
		return 0, false
	}
	if _, err := strconv.Atoi(rest[:6]); err != nil {
		return 0, false
	}
	seq, err := strconv.Atoi(rest[6:])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
