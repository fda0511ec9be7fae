package compress

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
	"github.com/nextlevelbuilder/sessionforge/internal/tokencount"
)

// Config controls the compression engine's scheduling and retry behaviour
// (spec.md §4.2, §6).
type Config struct {
	Concurrency       int
	TimeoutInitialMs  int
	MaxAttempts       int
	MinTokens         int
	ThinkingThreshold int
}

// DefaultConfig matches spec.md §6's enumerated defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		TimeoutInitialMs:  5000,
		MaxAttempts:       4,
		MinTokens:         20,
		ThinkingThreshold: 1000,
	}
}

var errTaskTimeout = errors.New("compression task timed out")
var errEmptyCompression = errors.New("compression call returned empty text")

// Run selects tasks from bands, executes them against cap with bounded
// concurrency and per-task retry/timeout, reintegrates successful results
// into a copy of sess, and returns the mutated session plus stats. The
// original session is never mutated (spec.md §3 lifecycle).
func Run(ctx context.Context, sess *session.CanonicalSession, bands []Band, cfg Config, capability Capability) (*session.CanonicalSession, session.CompressionStats) {
	out := cloneForCompression(sess)
	tasks, skipped := SelectTasks(out, bands, cfg.MinTokens)

	stats := session.CompressionStats{MessagesSkipped: skipped}
	if len(tasks) == 0 {
		return out, stats
	}

	for i := range tasks {
		tasks[i].TimeoutMs = cfg.TimeoutInitialMs
		tasks[i].BaseTimeoutMs = cfg.TimeoutInitialMs
	}

	runRounds(ctx, tasks, cfg, capability)

	positions := SelectablePositions(out)
	for i := range tasks {
		t := &tasks[i]
		stats.OriginalTokens += t.EstimatedTokens
		if t.Status == session.TaskSuccess {
			stats.MessagesCompressed++
			stats.CompressedTokens += tokencount.Estimate(t.Result)
			reintegrate(out, positions[t.MessageIndex], t.Result)
		} else {
			stats.MessagesFailed++
			stats.CompressedTokens += t.EstimatedTokens
		}
	}
	stats.TokensRemoved = stats.OriginalTokens - stats.CompressedTokens
	stats.ReductionPercent = reductionPercent(stats.OriginalTokens, stats.CompressedTokens)
	return out, stats
}

// runRounds drives tasks to a terminal status in batches of at most
// cfg.Concurrency in flight at once (spec.md §4.2 "Scheduling and
// concurrency"/"Retry policy"). Each round runs every still-pending task
// once; a task that needs another attempt re-enters the next round. No
// task is ever dispatched twice concurrently because a round only starts
// once every goroutine from the previous round has returned.
func runRounds(ctx context.Context, tasks []session.CompressionTask, cfg Config, capability Capability) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	pending := make([]int, len(tasks))
	for i := range tasks {
		pending[i] = i
	}

	for len(pending) > 0 {
		var g errgroup.Group
		g.SetLimit(concurrency)

		retryFlags := make([]bool, len(pending))
		for slot, idx := range pending {
			idx, slot := idx, slot
			g.Go(func() error {
				runAttempt(ctx, &tasks[idx], cfg, capability)
				retryFlags[slot] = tasks[idx].Status == session.TaskPending
				return nil
			})
		}
		_ = g.Wait()

		next := pending[:0]
		for slot, idx := range pending {
			if retryFlags[slot] {
				next = append(next, idx)
			}
		}
		sort.Ints(next)
		pending = next
	}
}

// runAttempt executes exactly one attempt for task, racing the capability
// call against the task's current timeout. A reply that arrives after the
// timeout fires is left unread on resultCh and never mutates task (spec.md
// §4.2 "Cancellation": "A late reply after timeout must not mutate any
// task state").
func runAttempt(ctx context.Context, t *session.CompressionTask, cfg Config, capability Capability) {
	t.Status = session.TaskInFlight
	useLarge := t.EstimatedTokens > cfg.ThinkingThreshold

	type outcome struct {
		text string
		err  error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		text, err := capability.Compress(ctx, t.OriginalContent, t.Level, useLarge)
		resultCh <- outcome{text, err}
	}()

	timer := time.NewTimer(time.Duration(t.TimeoutMs) * time.Millisecond)
	defer timer.Stop()

	var taskErr error
	select {
	case res := <-resultCh:
		if res.err == nil && res.text != "" {
			t.Status = session.TaskSuccess
			t.Result = res.text
			t.Err = nil
			return
		}
		taskErr = res.err
		if taskErr == nil {
			taskErr = errEmptyCompression
		}
	case <-timer.C:
		taskErr = errTaskTimeout
	}

	t.Err = taskErr
	t.Attempt++
	if t.Attempt >= cfg.MaxAttempts {
		t.Status = session.TaskFailed
		return
	}
	t.TimeoutMs = nextTimeoutMs(t.BaseTimeoutMs, t.Attempt)
	t.Status = session.TaskPending
}

// reintegrate replaces entry's textual content with compressed, leaving
// thinking and tool blocks untouched (spec.md §4.2 "Reintegration").
func reintegrate(sess *session.CanonicalSession, entryIdx int, compressed string) {
	e := &sess.Entries[entryIdx]
	if e.Message == nil {
		return
	}
	if e.Message.IsString() {
		e.Message.ContentStr = compressed
		e.Dirty = true
		return
	}

	replaced := false
	newBlocks := make([]session.ContentBlock, 0, len(e.Message.Blocks))
	for _, b := range e.Message.Blocks {
		if b.Kind != session.BlockText {
			newBlocks = append(newBlocks, b)
			continue
		}
		if replaced {
			continue // merge multiple text blocks into the single compressed block
		}
		newBlocks = append(newBlocks, session.ContentBlock{Kind: session.BlockText, Text: compressed})
		replaced = true
	}
	if !replaced {
		newBlocks = append(newBlocks, session.ContentBlock{Kind: session.BlockText, Text: compressed})
	}
	e.Message.Blocks = newBlocks
	e.Dirty = true
}

func reductionPercent(original, compressed int) int {
	if original == 0 {
		return 0
	}
	pct := int(math.Round((1 - float64(compressed)/float64(original)) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// cloneForCompression deep-copies a session so Run never mutates its
// input (spec.md §3: removal/compression "produce a new ordered
// sequence; originals are not retained").
func cloneForCompression(sess *session.CanonicalSession) *session.CanonicalSession {
	out := &session.CanonicalSession{ID: sess.ID, Source: sess.Source}
	out.Entries = make([]session.Entry, len(sess.Entries))
	for i, e := range sess.Entries {
		ne := e
		if e.Message != nil {
			nm := *e.Message
			if e.Message.Blocks != nil {
				nm.Blocks = append([]session.ContentBlock(nil), e.Message.Blocks...)
			}
			ne.Message = &nm
		}
		out.Entries[i] = ne
	}
	return out
}
