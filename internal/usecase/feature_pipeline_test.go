package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/service/alpaca"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	name  string
	saved *models.FeatureTable
	err   error
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Save(_ context.Context, t *models.FeatureTable) error {
	if s.err != nil {
		return s.err
	}
	s.saved = t
	return nil
}

func (s *memorySink) Close() error { return nil }

type memoryReports struct{ last *models.RunReport }

func (r *memoryReports) SaveReport(_ context.Context, rep *models.RunReport) error {
	r.last = rep
	return nil
}

func providerBar(ts time.Time, c float64) string {
	return fmt.Sprintf(`{"t":%q,"o":%g,"h":%g,"l":%g,"c":%g,"v":1000,"n":12,"vw":%g}`,
		ts.Format(time.RFC3339), c, c+0.5, c-0.5, c, c)
}

func providerPage(bars []string, next string) string {
	token := "null"
	if next != "" {
		token = fmt.Sprintf("%q", next)
	}
	return fmt.Sprintf(`{"bars":[%s],"next_page_token":%s}`, strings.Join(bars, ","), token)
}

// newProvider serves AAPL over three pages (13:50..14:29), TSLA over one page
// with gaps (13:55..14:29) and rejects MSFT.
func newProvider(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	aapl := make([]string, 40)
	for i := range aapl {
		aapl[i] = providerBar(minute(13, 50+i), 100+float64(i%5)+float64(i)/4)
	}
	var tsla []string
	for i := 5; i < 40; i++ {
		if i%6 == 0 {
			continue
		}
		tsla = append(tsla, providerBar(minute(13, 50+i), 200-float64(i%3)+float64(i)/3))
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Header.Get(alpaca.HeaderKeyID) != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v2/stocks/AAPL/bars":
			switch r.URL.Query().Get("page_token") {
			case "":
				fmt.Fprint(w, providerPage(aapl[:15], "a2"))
			case "a2":
				fmt.Fprint(w, providerPage(aapl[15:30], "a3"))
			case "a3":
				fmt.Fprint(w, providerPage(aapl[30:], ""))
			}
		case "/v2/stocks/TSLA/bars":
			fmt.Fprint(w, providerPage(tsla, ""))
		default:
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"forbidden"}`)
		}
	}))
}

func newTestPipeline(t *testing.T, url string, opts ...PipelineOption) *FeaturePipeline {
	t.Helper()
	client, err := alpaca.New(alpaca.Config{BaseURL: url, KeyID: "key", SecretKey: "secret", RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	assembler := NewTableAssembler(client, nil, nil, WithFetchWorkers(2))
	return NewFeaturePipeline(assembler, NewFeatureStage(WithFeatureWorkers(2)), opts...)
}

func TestPipelineEndToEnd(t *testing.T) {
	var calls int32
	srv := newProvider(t, &calls)
	defer srv.Close()

	sink := &memorySink{name: "memory"}
	reports := &memoryReports{}
	m := &countingMetrics{}
	p := newTestPipeline(t, srv.URL, WithSinks(sink), WithReportSinks(reports), WithPipelineMetrics(m))

	table, report, err := p.Run(context.Background(), Request{
		Tickers: []string{"AAPL", "MSFT", "TSLA"},
		Start:   day,
		End:     day.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))

	assert.Equal(t, models.Columns, table.Columns())
	assert.Equal(t, []string{"AAPL", "TSLA"}, table.Symbols())
	require.Equal(t, 60, table.Len(), "30 session minutes per symbol")

	for i, r := range table.Rows {
		assert.Equal(t, 14, r.Timestamp.Hour())
		assert.True(t, r.Close.Valid)
		assert.True(t, r.Open.Valid)
		if i%30 > 0 {
			assert.Equal(t, time.Minute, r.Timestamp.Sub(table.Rows[i-1].Timestamp))
		}
	}

	aaplFirst, aaplLast := table.Rows[0], table.Rows[29]
	assert.Equal(t, minute(14, 0), aaplFirst.Timestamp)
	assert.False(t, aaplFirst.SMA.Valid, "grid index 10 is inside the SMA warm-up")
	assert.False(t, aaplFirst.RSI.Valid)
	assert.True(t, aaplFirst.StochSlowK.Valid)
	assert.True(t, aaplFirst.BBandMid.Valid)
	for i, v := range aaplLast.Values()[9:] {
		assert.NotNil(t, v, models.IndicatorColumns[i])
	}

	tslaGap := table.Rows[30+14]
	assert.Equal(t, minute(14, 14), tslaGap.Timestamp)
	assert.False(t, tslaGap.Volume.Valid, "densified row keeps null volume")

	assert.Same(t, table, sink.saved)
	assert.Same(t, report, reports.last)
	assert.Equal(t, []string{"MSFT"}, report.FailedSymbols())
	assert.Equal(t, 60, report.Rows)
	assert.Empty(t, report.Error)
	assert.Equal(t, models.GridStats{GridPoints: 40, Inserted: 11}, report.Grid)
	var stages []string
	for _, s := range report.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{"assemble", "parse_timestamps", "densify", "repair_nulls", "features", "session_filter"}, stages)
	assert.Equal(t, stages, m.stages)
	assert.Equal(t, 60, m.exported["memory"])
	assert.Equal(t, 1, m.runs)
}

func TestPipelineShortHistoryFails(t *testing.T) {
	var calls int32
	srv := newProvider(t, &calls)
	defer srv.Close()

	reports := &memoryReports{}
	sink := &memorySink{name: "memory"}
	p := newTestPipeline(t, srv.URL, WithSinks(sink), WithReportSinks(reports), WithSession(SessionWindow{StartHour: 0, EndHour: 23}))

	table, report, err := p.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Start: day, End: day})
	require.NoError(t, err)
	assert.Equal(t, 40, table.Len())
	assert.Empty(t, report.Error)

	// A window spanning one grid point leaves too little history.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, providerPage([]string{providerBar(minute(14, 0), 10)}, ""))
	}))
	defer srv2.Close()
	p = newTestPipeline(t, srv2.URL, WithSinks(sink), WithReportSinks(reports))
	sink.saved = nil

	table, report, err = p.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Start: day, End: day})
	require.ErrorIs(t, err, models.ErrInsufficientHistory)
	assert.Nil(t, table)
	assert.Nil(t, sink.saved, "nothing is exported after a failed run")
	assert.Same(t, report, reports.last)
	assert.NotEmpty(t, report.Error)
}

func TestPipelineSinkFailureStillExportsOthers(t *testing.T) {
	var calls int32
	srv := newProvider(t, &calls)
	defer srv.Close()

	broken := &memorySink{name: "broken", err: errors.New("disk full")}
	ok := &memorySink{name: "ok"}
	p := newTestPipeline(t, srv.URL, WithSinks(broken, ok))

	table, report, err := p.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Start: day, End: day})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink broken: disk full")
	require.NotNil(t, table)
	assert.Same(t, table, ok.saved)
	assert.NotEmpty(t, report.Error)
}

func TestPipelineNoTickersSucceeded(t *testing.T) {
	var calls int32
	srv := newProvider(t, &calls)
	defer srv.Close()

	table, report, err := newTestPipeline(t, srv.URL).Run(context.Background(), Request{Tickers: []string{"MSFT"}, Start: day, End: day})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, models.Columns, table.Columns())
	assert.Equal(t, []string{"MSFT"}, report.FailedSymbols())
}

func TestPipelineEmptyTimestampPullsGridToEpoch(t *testing.T) {
	bars := make([]string, 0, 31)
	for i := 0; i < 30; i++ {
		bars = append(bars, providerBar(minute(14, i), 50+float64(i)))
	}
	bars = append(bars, `{"t":"","o":1,"h":1.5,"l":0.5,"c":1,"v":10,"n":1,"vw":1}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, providerPage(bars, ""))
	}))
	defer srv.Close()

	reports := &memoryReports{}
	sink := &memorySink{name: "memory"}
	p := newTestPipeline(t, srv.URL, WithSinks(sink), WithReportSinks(reports), WithMaxGridRows(20000000))

	table, report, err := p.Run(context.Background(), Request{Tickers: []string{"AAPL"}, Start: day, End: day})
	require.ErrorIs(t, err, models.ErrGridTooLarge)
	assert.Nil(t, table)
	assert.Nil(t, sink.saved)
	assert.Same(t, report, reports.last)
	assert.Equal(t, 1, report.EpochFallbacks)
	assert.Contains(t, report.Error, EpochFallback.Format(time.RFC3339))
}
