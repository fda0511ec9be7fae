package compress

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nextlevelbuilder/sessionforge/internal/session"
)

func longText(n int) string {
	return strings.Repeat("word ", n)
}

func userEntry(text string) session.Entry {
	return session.Entry{Kind: session.KindUser, Message: &session.Message{Role: "user", ContentStr: text}}
}

func assistantEntry(text string) session.Entry {
	return session.Entry{Kind: session.KindAssistant, Message: &session.Message{Role: "assistant", ContentStr: text}}
}

// failNTimesCapability rejects the first n calls then succeeds.
type failNTimesCapability struct {
	calls int32
	failN int32
	ok    string
}

func (c *failNTimesCapability) Compress(ctx context.Context, text string, level session.CompressionLevel, useLargeModel bool) (string, error) {
	n := atomic.AddInt32(&c.calls, 1)
	if n <= c.failN {
		return "", errors.New("transient failure")
	}
	return c.ok, nil
}

func TestRun_RetrySucceedsOnSecondAttempt(t *testing.T) {
	sess := &session.CanonicalSession{Entries: []session.Entry{
		userEntry(longText(50)),
		assistantEntry(longText(50)),
	}}
	bands := []Band{{StartPercent: 0, EndPercent: 100, Level: session.LevelCompress}}
	cap := &failNTimesCapability{failN: 1, ok: "compressed on retry"}

	cfg := DefaultConfig()
	cfg.TimeoutInitialMs = 1000
	out, stats := Run(context.Background(), sess, bands, cfg, cap)

	if stats.MessagesFailed != 0 {
		t.Fatalf("expected no failures, got %d", stats.MessagesFailed)
	}
	if stats.MessagesCompressed != 2 {
		t.Fatalf("expected both messages compressed, got %d", stats.MessagesCompressed)
	}
	for _, e := range out.Entries {
		if e.Message.ContentStr != "compressed on retry" {
			t.Fatalf("expected reintegrated text, got %q", e.Message.ContentStr)
		}
	}
}

func TestRun_MaxRetryFailureKeepsOriginal(t *testing.T) {
	sess := &session.CanonicalSession{Entries: []session.Entry{
		userEntry(longText(50)),
	}}
	bands := []Band{{StartPercent: 0, EndPercent: 100, Level: session.LevelCompress}}
	cap := &failNTimesCapability{failN: 1000, ok: "never reached"}

	cfg := DefaultConfig()
	cfg.MaxAttempts = 4
	cfg.TimeoutInitialMs = 1000
	out, stats := Run(context.Background(), sess, bands, cfg, cap)

	if stats.MessagesFailed != 1 {
		t.Fatalf("expected 1 failure, got %d", stats.MessagesFailed)
	}
	if atomic.LoadInt32(&cap.calls) != 4 {
		t.Fatalf("expected exactly 4 calls, got %d", cap.calls)
	}
	if out.Entries[0].Message.ContentStr != longText(50) {
		t.Fatalf("original content should be retained on terminal failure")
	}
}

func TestRun_MinTokensSkipsTinyMessages(t *testing.T) {
	sess := &session.CanonicalSession{Entries: []session.Entry{
		userEntry("hi"),
		assistantEntry(longText(50)),
	}}
	bands := []Band{{StartPercent: 0, EndPercent: 100, Level: session.LevelCompress}}
	cap := &failNTimesCapability{failN: 0, ok: "compressed"}

	cfg := DefaultConfig()
	_, stats := Run(context.Background(), sess, bands, cfg, cap)

	if stats.MessagesSkipped != 1 {
		t.Fatalf("expected 1 skipped message, got %d", stats.MessagesSkipped)
	}
	if stats.MessagesCompressed != 1 {
		t.Fatalf("expected 1 compressed message, got %d", stats.MessagesCompressed)
	}
}

// boundedConcurrencyCapability counts concurrent in-flight calls and fails
// the test if the bound is ever exceeded (invariant 8).
type boundedConcurrencyCapability struct {
	mu          sync.Mutex
	inFlight    int
	maxObserved int
	limit       int
	t           *testing.T
}

func (c *boundedConcurrencyCapability) Compress(ctx context.Context, text string, level session.CompressionLevel, useLargeModel bool) (string, error) {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxObserved {
		c.maxObserved = c.inFlight
	}
	if c.inFlight > c.limit {
		c.t.Errorf("concurrency bound exceeded: %d > %d", c.inFlight, c.limit)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()
	return "compressed", nil
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var entries []session.Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, userEntry(longText(50)))
	}
	sess := &session.CanonicalSession{Entries: entries}
	bands := []Band{{StartPercent: 0, EndPercent: 100, Level: session.LevelCompress}}
	cap := &boundedConcurrencyCapability{limit: 5, t: t}

	cfg := DefaultConfig()
	cfg.Concurrency = 5
	_, stats := Run(context.Background(), sess, bands, cfg, cap)

	if stats.MessagesCompressed != 40 {
		t.Fatalf("expected all 40 messages compressed, got %d", stats.MessagesCompressed)
	}
}

func TestReductionPercent(t *testing.T) {
	cases := []struct {
		original, compressed, want int
	}{
		{0, 0, 0},
		{100, 35, 65},
		{100, 100, 0},
		{100, 150, 0}, // clamp below zero
	}
	for _, c := range cases {
		if got := reductionPercent(c.original, c.compressed); got != c.want {
			t.Errorf("reductionPercent(%d,%d) = %d, want %d", c.original, c.compressed, got, c.want)
		}
	}
}
