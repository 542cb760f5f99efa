package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"StockFrame/internal/domain/models"
	"StockFrame/internal/service/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rangeStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
)

func barJSON(ts string, c float64) string {
	return fmt.Sprintf(`{"t":%q,"o":%g,"h":%g,"l":%g,"c":%g,"v":100,"n":7,"vw":%g}`, ts, c, c+1, c-1, c, c)
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url, KeyID: "key", SecretKey: "secret", RetryBackoff: time.Millisecond, MaxRetries: 2}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{KeyID: "key"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = New(Config{SecretKey: "secret"})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestFetchBarsFollowsPageTokens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v2/stocks/AAPL/bars", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get(HeaderKeyID))
		assert.Equal(t, "secret", r.Header.Get(HeaderSecret))
		assert.Equal(t, "1Min", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-03-02T00:00:00Z", r.URL.Query().Get("end"))

		switch r.URL.Query().Get("page_token") {
		case "":
			fmt.Fprintf(w, `{"bars":[%s],"symbol":"AAPL","next_page_token":"p2"}`, barJSON("2024-03-01T14:00:00Z", 10))
		case "p2":
			fmt.Fprintf(w, `{"bars":[%s,%s],"symbol":"AAPL","next_page_token":"p3"}`,
				barJSON("2024-03-01T14:01:00Z", 11), barJSON("2024-03-01T14:02:00Z", 12))
		case "p3":
			fmt.Fprintf(w, `{"bars":[%s],"symbol":"AAPL","next_page_token":null}`, barJSON("2024-03-01T14:03:00Z", 13))
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("page_token"))
		}
	}))
	defer srv.Close()

	bars, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "2024-03-01T14:00:00Z", bars[0].Timestamp)
	assert.Equal(t, 13.0, bars[3].Close)
	assert.Equal(t, 14.0, bars[3].High)
	assert.True(t, bars[3].Volume.Valid)
	assert.Equal(t, int64(7), bars[3].TradeCount.Int64)
}

func TestFetchBarsMissingCursorIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bars":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
}

func TestFetchBarsMalformedJSONIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
}

func TestFetchBarsNullBarsIsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bars":null,"next_page_token":null}`)
	}))
	defer srv.Close()

	bars, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchBarsMissingFieldIsSchemaMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bars":[{"t":"2024-03-01T14:00:00Z","o":1,"h":1,"l":1,"v":3}],"next_page_token":null}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	assert.ErrorIs(t, err, models.ErrSchemaMismatch)
}

func TestFetchBarsRetriesRateLimitedRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"bars":[%s],"next_page_token":null}`, barJSON("2024-03-01T14:00:00Z", 10))
	}))
	defer srv.Close()

	bars, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchBarsDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchBarsUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprintf(w, `{"bars":[%s],"next_page_token":null}`, barJSON("2024-03-01T14:00:00Z", 10))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, KeyID: "key", SecretKey: "secret", CacheTTL: time.Minute},
		WithCache(cache.NewTTLCache()))
	require.NoError(t, err)

	first, err := c.FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	second, err := c.FetchBars(context.Background(), "AAPL", rangeStart, rangeEnd)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecodePageFlexibleIntegers(t *testing.T) {
	p, err := decodePage([]byte(`{"bars":[{"t":"2024-03-01T14:00:00Z","o":1,"h":2,"l":0.5,"c":1.5,"v":120.0,"n":null,"vw":1.2}],"next_page_token":""}`))
	require.NoError(t, err)
	require.Len(t, p.bars, 1)
	assert.True(t, p.last)
	assert.Equal(t, int64(120), p.bars[0].Volume.Int64)
	assert.False(t, p.bars[0].TradeCount.Valid)
}

func TestCheckColumns(t *testing.T) {
	full := map[string]json.RawMessage{
		"t": json.RawMessage(`"2024-03-01T14:00:00Z"`), "o": json.RawMessage(`1`), "h": json.RawMessage(`2`),
		"l": json.RawMessage(`0.5`), "c": json.RawMessage(`1.5`), "vw": json.RawMessage(`1.2`),
	}
	require.NoError(t, checkColumns(full))

	full["vw"] = json.RawMessage(`null`)
	err := checkColumns(full)
	assert.ErrorIs(t, err, models.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "vwap")

	saved := models.RawColumns
	t.Cleanup(func() { models.RawColumns = saved })
	models.RawColumns = append(append([]string{}, saved...), "exchange")
	full["vw"] = json.RawMessage(`1.2`)
	err = checkColumns(full)
	assert.ErrorIs(t, err, models.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "exchange")
}

func TestBarFieldsCoverRawColumns(t *testing.T) {
	assert.Len(t, models.RawColumns, len(barFields)+1)
	for _, col := range barFields {
		assert.Contains(t, models.RawColumns, col)
	}
}
