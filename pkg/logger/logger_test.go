package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu    sync.Mutex
	topic string
	batch []AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batch = append(p.batch, payload.([]AggregatedLogEntry)...)
	return nil
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.With(String("stage", "densify")).Info("stage done",
		Int("rows", 42),
		Strings("symbols", []string{"AAPL", "TSLA"}),
		Duration("duration_ms", 1500*time.Millisecond),
	)
	l.Debug("hidden")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"stage":"densify"`)
	assert.Contains(t, out, `"rows":42`)
	assert.Contains(t, out, `"symbols":"AAPL, TSLA"`)
	assert.Contains(t, out, `"duration_ms":1500`)
	assert.NotContains(t, out, "hidden")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestCollectorAggregatesErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	fetchErr := errors.New("connection reset")
	for i := 0; i < 3; i++ {
		l.Error("ticker fetch failed", String("symbol", "AAPL"), Error(fetchErr))
	}
	l.Error("ticker fetch failed", String("symbol", "TSLA"), Error(fetchErr))
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "logs", pub.topic)
	require.Len(t, pub.batch, 2)
	counts := map[string]int{}
	for _, e := range pub.batch {
		counts[e.Fields["symbol"].(string)] = e.Count
	}
	assert.Equal(t, map[string]int{"AAPL": 3, "TSLA": 1}, counts)
}

func TestCollectorReachesDerivedLoggers(t *testing.T) {
	pub := &capturePublisher{}
	root := Nop()
	child := root.With(String("component", "assembler"))
	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, MinLevel: "warn", Topic: "logs", Publisher: pub})

	child.Warn("slow page", String("symbol", "AAPL"))
	child.Info("ignored below min level")
	root.RemoveCollector()
	child.Error("after removal")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batch, 1)
	assert.Equal(t, "warn", pub.batch[0].Level)
	assert.Equal(t, "slow page", pub.batch[0].Message)
	assert.Contains(t, pub.batch[0].Caller, "logger_test.go:")
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.batch) == 2
	}, time.Second, 10*time.Millisecond)
}
