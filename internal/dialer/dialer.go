package dialer

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
)

// Placer starts a single outbound call and returns the provider's call ID.
type Placer interface {
	Place(ctx context.Context, to, from string) (string, error)
}

// Config controls a dial batch.
type Config struct {
	// Sources are the caller IDs rotated across targets.
	Sources []string
	// Concurrency caps how many placements run at once.
	Concurrency int
}

// DefaultConcurrency bounds simultaneous outbound placements.
const DefaultConcurrency = 10

// Result is the outcome of one placement attempt.
type Result struct {
	Target string
	Source string
	CallID string
	Err    error
}

// Dialer fans a batch of targets out to the telephony provider with bounded
// concurrency, rotating source numbers round-robin over the deduplicated
// target list.
type Dialer struct {
	placer Placer
	cfg    Config
}

func New(placer Placer, cfg Config) (*Dialer, error) {
	if placer == nil {
		return nil, errors.New("dialer: placer is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("dialer: at least one source number is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Dialer{placer: placer, cfg: cfg}, nil
}

// Dial places one call per distinct target and returns results in the
// deduplicated target order. Duplicate targets are collapsed to their first
// occurrence; a cancelled context fails the placements that have not started
// without tearing down the ones in flight.
func (d *Dialer) Dial(ctx context.Context, targets []string) []Result {
	deduped := dedupe(targets)
	results := make([]Result, len(deduped))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, target := range deduped {
		source := d.cfg.Sources[i%len(d.cfg.Sources)]
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = Result{Target: target, Source: source, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		go func(i int, to, from string) {
			defer wg.Done()
			defer func() { <-sem }()
			id, err := d.placer.Place(ctx, to, from)
			if err != nil {
				log.Printf("dial %s from %s failed: %v", to, from, err)
			} else {
				log.Printf("dial %s from %s placed as %s", to, from, id)
			}
			results[i] = Result{Target: to, Source: from, CallID: id, Err: err}
		}(i, target, source)
	}
	wg.Wait()
	return results
}

// dedupe collapses repeated targets to their first occurrence, preserving
// order. Whitespace-only entries are dropped.
func dedupe(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
