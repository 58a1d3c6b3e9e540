package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/common"
	"github.com/etnz/cryptofolio/history"
	"github.com/etnz/cryptofolio/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

// fakeQuotes prices every known symbol, or fails with err.
type fakeQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	block  bool // wait for the context to be done
	calls  int
}

func (f *fakeQuotes) Quotes(ctx context.Context, symbols []string) (cryptofolio.Quotes, error) {
	f.mu.Lock()
	f.calls++
	err, block := f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	res := make(cryptofolio.Quotes)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			res[s] = cryptofolio.Quote{Price: decimal.NewNullDecimal(decimal.NewFromFloat(p)), PercentChange24h: 1}
		}
	}
	return res, nil
}

func (f *fakeQuotes) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// hang makes every call wait for its context.
func (f *fakeQuotes) hang() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = true
}

type fakeSummarizer struct {
	report string
	err    error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, report string) (string, error) {
	f.report = report
	if f.err != nil {
		return "", f.err
	}
	return "All good.", nil
}

// flakyBackend fails writes of a key on demand.
type flakyBackend struct {
	storage.Backend
	mu       sync.Mutex
	failKeys map[string]bool
}

func (b *flakyBackend) Write(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	fail := b.failKeys[key]
	b.mu.Unlock()
	if fail {
		return fmt.Errorf("disk full")
	}
	return b.Backend.Write(ctx, key, data)
}

func (b *flakyBackend) failWrites(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failKeys[key] = true
}

type fixture struct {
	tracker *Tracker
	quotes  *fakeQuotes
	backend *flakyBackend
	history *history.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	file, err := storage.NewFileBackend(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	backend := &flakyBackend{Backend: file, failKeys: map[string]bool{}}
	clock := func() time.Time { return now }
	hist := history.NewStore(backend, history.WithClock(clock))
	quotes := &fakeQuotes{prices: map[string]float64{"BTC": 300000, "ETH": 15000, "SOL": 1000, "USDT": 5}}

	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{
		tracker: New(backend, quotes, hist, opts...),
		quotes:  quotes,
		backend: backend,
		history: hist,
	}
}

func TestTracker_ColdStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.tracker.Holdings(ctx)
	require.NoError(t, err)
	assert.Empty(t, h)

	v, err := f.tracker.Portfolio(ctx)
	require.NoError(t, err)
	assert.True(t, v.Total.IsZero())
	assert.Zero(t, f.quotes.calls, "nothing to price")

	entries, err := f.tracker.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTracker_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5), "USDT": cryptofolio.Q(1000)})
	require.NoError(t, err)
	assert.Equal(t, "155000", res.Valuation.Total.Decimal().String())
	assert.Equal(t, float64(155000), res.Entry.Value)

	// a partial update keeps the other symbols.
	res, err = f.tracker.Update(ctx, cryptofolio.Holdings{"USDT": cryptofolio.Q(2000)})
	require.NoError(t, err)
	assert.Equal(t, "160000", res.Valuation.Total.Decimal().String())

	h, err := f.tracker.Holdings(ctx)
	require.NoError(t, err)
	assert.True(t, h["BTC"].Equal(cryptofolio.Q(0.5)))
	assert.True(t, h["USDT"].Equal(cryptofolio.Q(2000)))

	entries, err := f.tracker.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []float64{155000, 160000}, []float64{entries[0].Value, entries[1].Value})
}

func TestTracker_UpdateInvalidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(1), "ETH": cryptofolio.Q(-1)})
	require.ErrorIs(t, err, cryptofolio.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "ETH")
	assert.Zero(t, f.quotes.calls)

	h, err := f.tracker.Holdings(ctx)
	require.NoError(t, err)
	assert.Empty(t, h, "BTC was not applied either")
}

func TestTracker_UpdatePricesUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5)})
	require.NoError(t, err)

	f.quotes.fail(errors.New("connection refused"))
	_, err = f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(1)})
	require.ErrorIs(t, err, cryptofolio.ErrPricesUnavailable)

	h, err := f.tracker.Holdings(ctx)
	require.NoError(t, err)
	assert.True(t, h["BTC"].Equal(cryptofolio.Q(0.5)), "holdings unchanged")
	entries, err := f.tracker.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "history unchanged")
}

func TestTracker_UpdateTimeout(t *testing.T) {
	f := newFixture(t, WithQuoteTimeout(20*time.Millisecond))
	f.quotes.hang()

	_, err := f.tracker.Update(context.Background(), cryptofolio.Holdings{"BTC": cryptofolio.Q(1)})
	require.ErrorIs(t, err, cryptofolio.ErrPricesUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTracker_UpdateRollsBackHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5)})
	require.NoError(t, err)

	f.backend.failWrites(HoldingsKey)
	_, err = f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(1)})
	require.Error(t, err)

	entries, err := f.tracker.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the history append was rolled back")
	assert.Equal(t, float64(150000), entries[0].Value)
}

func TestTracker_UpdateHistoryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.failWrites(history.Key)
	_, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(1)})
	require.Error(t, err)

	h, err := f.tracker.Holdings(ctx)
	require.NoError(t, err)
	assert.Empty(t, h, "holdings are not saved when the history cannot be")
}

func TestTracker_ConcurrentUpdatesLoseNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	symbols := []string{"BTC", "ETH", "SOL", "USDT"}
	const rounds = 5

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			for i := 1; i <= rounds; i++ {
				_, err := f.tracker.Update(ctx, cryptofolio.Holdings{symbol: cryptofolio.Q(i)})
				assert.NoError(t, err)
			}
		}(symbol)
	}
	wg.Wait()

	h, err := f.tracker.Holdings(ctx)
	require.NoError(t, err)
	for _, symbol := range symbols {
		assert.True(t, h[symbol].Equal(cryptofolio.Q(rounds)), "%s lost an update", symbol)
	}

	entries, err := f.tracker.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, len(symbols)*rounds, "every update recorded a valuation")
}

func TestTracker_Portfolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data, err := cryptofolio.EncodeHoldings(cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5), "XYZ": cryptofolio.Q(7), "USDB": cryptofolio.Q(100)})
	require.NoError(t, err)
	require.NoError(t, f.backend.Write(ctx, HoldingsKey, data))

	v, err := f.tracker.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, v.Skipped)
	assert.Equal(t, "150500", v.Total.Decimal().String(), "USDB is priced as USDT")

	entries, err := f.tracker.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "reading does not record a valuation")
}

func TestTracker_Analysis(t *testing.T) {
	summarizer := &fakeSummarizer{}
	f := newFixture(t, WithSummarizer(summarizer))
	ctx := context.Background()

	_, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5), "USDT": cryptofolio.Q(1000)})
	require.NoError(t, err)

	r, err := f.tracker.Analysis(ctx, false)
	require.NoError(t, err)
	assert.True(t, r.Plan.Needed)
	assert.Empty(t, r.Summary)
	assert.Empty(t, summarizer.report, "summarizer not called")
	assert.Contains(t, r.Markdown, "R$ 155000.00")
	assert.Equal(t, "UTC-3", r.Timestamp.Location().String())

	r, err = f.tracker.Analysis(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "All good.", r.Summary)
	assert.Equal(t, r.Markdown, summarizer.report)

	summarizer.err = errors.New("quota exceeded")
	_, err = f.tracker.Analysis(ctx, true)
	assert.ErrorIs(t, err, ErrSummaryUnavailable)
}

func TestTracker_AnalysisWithoutSummarizer(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.Analysis(context.Background(), true)
	assert.ErrorIs(t, err, ErrSummaryUnavailable)

	_, err = f.tracker.Analysis(context.Background(), false)
	assert.NoError(t, err)
}

func TestTracker_AnalysisPricesUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracker.Update(ctx, cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5)})
	require.NoError(t, err)

	f.quotes.fail(errors.New("boom"))
	_, err = f.tracker.Analysis(ctx, false)
	assert.ErrorIs(t, err, cryptofolio.ErrPricesUnavailable)
}

func TestTracker_AnalysisLogsSkippedOnce(t *testing.T) {
	var logs bytes.Buffer
	f := newFixture(t, WithLogger(common.NewLoggerWithOutput("warn", &logs)))
	ctx := context.Background()
	data, err := cryptofolio.EncodeHoldings(cryptofolio.Holdings{"BTC": cryptofolio.Q(0.5), "XYZ": cryptofolio.Q(7)})
	require.NoError(t, err)
	require.NoError(t, f.backend.Write(ctx, HoldingsKey, data))

	r, err := f.tracker.Analysis(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, r.Valuation.Skipped)
	assert.Equal(t, 1, strings.Count(logs.String(), `"symbol":"XYZ"`), logs.String())
	assert.Contains(t, logs.String(), "no price available")
}
