package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/usecase"
	"StockFrame/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	mu   sync.Mutex
	reqs []usecase.Request
	err  error
}

func (s *stubPipeline) Run(_ context.Context, req usecase.Request) (*models.FeatureTable, *models.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, &models.RunReport{Error: s.err.Error()}, s.err
	}
	return models.NewFeatureTable(nil), &models.RunReport{}, nil
}

func (s *stubPipeline) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.Tickers = []string{"AAPL"}
	return cfg
}

func TestRunOnceAndClose(t *testing.T) {
	p := &stubPipeline{}
	var closed []string
	app := New(testConfig(), nil, p, nil,
		Closer{Name: "first", Close: func() error { closed = append(closed, "first"); return nil }},
		Closer{Name: "second", Close: func() error { closed = append(closed, "second"); return errors.New("ignored") }},
	)
	app.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }

	require.NoError(t, app.run(context.Background()))
	require.Equal(t, 1, p.calls())
	req := p.reqs[0]
	assert.Equal(t, []string{"AAPL"}, req.Tickers)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), req.End)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), req.Start)
	assert.Equal(t, []string{"second", "first"}, closed)
}

func TestRunOnceReturnsPipelineError(t *testing.T) {
	p := &stubPipeline{err: models.ErrInsufficientHistory}
	err := New(testConfig(), nil, p, nil).run(context.Background())
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestScheduledRunsUntilCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Interval = 10 * time.Millisecond
	p := &stubPipeline{}
	app := New(cfg, nil, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.run(ctx) }()

	require.Eventually(t, func() bool { return p.calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
}
