package metrics

import (
	"testing"
	"time"

	"StockFrame/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordPageFetched("AAPL")
	r.RecordPageFetched("AAPL")
	r.RecordFetchFailure("TSLA")
	r.RecordStage("densify", 120, 0.01)
	r.RecordSymbolStatus("AAPL", models.StatusSuccess)
	r.RecordRowsExported("file", 50)
	r.RecordRowsExported("file", 25)
	r.RecordRunCompleted(time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.pagesFetched.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures.WithLabelValues("TSLA")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.stageRows.WithLabelValues("densify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.symbolStatus.WithLabelValues("AAPL", "success")))
	assert.Equal(t, 75.0, testutil.ToFloat64(r.rowsExported.WithLabelValues("file")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastRun))
}
