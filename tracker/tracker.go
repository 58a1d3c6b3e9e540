// Package tracker ties the portfolio together: persisted holdings, live quotes,
// the valuation history and the summarizer.
//
// A Tracker serializes holding updates. Every update is a single cycle: read
// holdings, merge, fetch quotes, value, append to the history, save holdings.
// Either both the history and the holdings move, or neither does.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/common"
	"github.com/etnz/cryptofolio/history"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/etnz/cryptofolio/storage"
)

// HoldingsKey is the storage key of the holdings document.
const HoldingsKey = "portfolio.json"

// DefaultQuoteTimeout bounds the quote fetch of an update.
const DefaultQuoteTimeout = 30 * time.Second

// ErrSummaryUnavailable is returned when the summary cannot be produced.
var ErrSummaryUnavailable = errors.New("summary unavailable")

// Summarizer turns a markdown report into a free text analysis.
type Summarizer interface {
	Summarize(ctx context.Context, report string) (string, error)
}

// Tracker manages a single portfolio.
type Tracker struct {
	backend        storage.Backend
	quotes         cryptofolio.QuoteProvider
	history        *history.Store
	summarizer     Summarizer
	classification cryptofolio.Classification
	logger         *common.Logger
	now            func() time.Time
	quoteTimeout   time.Duration

	// mu serializes update cycles.
	mu sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSummarizer sets the summarizer, without one summaries are unavailable.
func WithSummarizer(s Summarizer) Option {
	return func(t *Tracker) { t.summarizer = s }
}

// WithClassification replaces cryptofolio.DefaultClassification.
func WithClassification(c cryptofolio.Classification) Option {
	return func(t *Tracker) { t.classification = c }
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithQuoteTimeout bounds every quote fetch. Zero means no bound.
func WithQuoteTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.quoteTimeout = d }
}

// New creates a Tracker storing holdings in backend and valuations in hist.
func New(backend storage.Backend, quotes cryptofolio.QuoteProvider, hist *history.Store, opts ...Option) *Tracker {
	t := &Tracker{
		backend:        backend,
		quotes:         quotes,
		history:        hist,
		classification: cryptofolio.DefaultClassification,
		logger:         common.NewSilentLogger(),
		now:            time.Now,
		quoteTimeout:   DefaultQuoteTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Holdings returns the persisted holdings, empty if there are none yet.
func (t *Tracker) Holdings(ctx context.Context) (cryptofolio.Holdings, error) {
	data, err := t.backend.Read(ctx, HoldingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return cryptofolio.Holdings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read holdings: %w", err)
	}
	return cryptofolio.DecodeHoldings(data)
}

func (t *Tracker) saveHoldings(ctx context.Context, h cryptofolio.Holdings) error {
	data, err := cryptofolio.EncodeHoldings(h)
	if err != nil {
		return fmt.Errorf("cannot encode holdings: %w", err)
	}
	if err := t.backend.Write(ctx, HoldingsKey, data); err != nil {
		return fmt.Errorf("cannot write holdings: %w", err)
	}
	return nil
}

// fetch gets the quotes of every symbol in h, within the quote timeout.
func (t *Tracker) fetch(ctx context.Context, h cryptofolio.Holdings) (cryptofolio.Quotes, error) {
	if len(h) == 0 {
		return cryptofolio.Quotes{}, nil
	}
	if t.quoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.quoteTimeout)
		defer cancel()
	}
	return cryptofolio.FetchQuotes(ctx, t.quotes, h.Symbols())
}

// value prices h and logs the symbols that could not be priced.
func (t *Tracker) value(h cryptofolio.Holdings, q cryptofolio.Quotes) cryptofolio.Valuation {
	v := cryptofolio.Value(h, q)
	t.logSkipped(v)
	return v
}

func (t *Tracker) logSkipped(v cryptofolio.Valuation) {
	for _, symbol := range v.Skipped {
		t.logger.Warn().Str("symbol", symbol).Msg("no price available, asset excluded from valuation")
	}
}

// Portfolio values the current holdings.
func (t *Tracker) Portfolio(ctx context.Context) (cryptofolio.Valuation, error) {
	h, err := t.Holdings(ctx)
	if err != nil {
		return cryptofolio.Valuation{}, err
	}
	q, err := t.fetch(ctx, h)
	if err != nil {
		return cryptofolio.Valuation{}, err
	}
	return t.value(h, q), nil
}

// UpdateResult is the outcome of a successful update.
type UpdateResult struct {
	Holdings  cryptofolio.Holdings  `json:"portfolio"`
	Valuation cryptofolio.Valuation `json:"valuation"`
	Entry     history.Entry         `json:"entry"`
}

// Update merges update into the holdings, values them and records the value
// in the history.
//
// Nothing is persisted unless the whole cycle succeeds: a quote failure aborts
// before any write, and a failure to save the holdings puts the history back.
func (t *Tracker) Update(ctx context.Context, update cryptofolio.Holdings) (*UpdateResult, error) {
	for _, symbol := range update.Symbols() {
		if symbol == "" || update[symbol].IsNegative() {
			return nil, fmt.Errorf("%w for %q: %v", cryptofolio.ErrInvalidAmount, symbol, update[symbol])
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.Holdings(ctx)
	if err != nil {
		return nil, err
	}
	next := current.Apply(update)

	q, err := t.fetch(ctx, next)
	if err != nil {
		return nil, err
	}
	v := t.value(next, q)
	entry := history.NewEntry(t.now(), v.Total.AsFloat())

	previous, err := t.history.Append(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := t.saveHoldings(ctx, next); err != nil {
		if rerr := t.history.Replace(ctx, previous); rerr != nil {
			t.logger.Error().Err(rerr).Msg("cannot roll back history after holdings write failure")
			return nil, errors.Join(err, fmt.Errorf("cannot roll back history: %w", rerr))
		}
		return nil, err
	}

	t.logger.Info().
		Strs("symbols", update.Symbols()).
		Str("total", v.Total.Fixed()).
		Msg("portfolio updated")
	return &UpdateResult{Holdings: next, Valuation: v, Entry: entry}, nil
}

// Report is a computed analysis, its markdown rendering and, when requested,
// the summarizer's text.
type Report struct {
	*cryptofolio.Analysis
	Markdown  string    `json:"report"`
	Summary   string    `json:"analysis,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Analysis values the holdings and computes the allocation, the rebalancing
// plan and the weighted changes. With summarize, the report is also sent to
// the summarizer and the call fails as a whole if that fails.
func (t *Tracker) Analysis(ctx context.Context, summarize bool) (*Report, error) {
	if summarize && t.summarizer == nil {
		return nil, fmt.Errorf("%w: no summarizer configured", ErrSummaryUnavailable)
	}
	h, err := t.Holdings(ctx)
	if err != nil {
		return nil, err
	}
	q, err := t.fetch(ctx, h)
	if err != nil {
		return nil, err
	}

	at := t.now().In(cryptofolio.Zone)
	a := cryptofolio.Analyze(h, q, t.classification, at)
	t.logSkipped(a.Valuation)
	r := &Report{
		Analysis:  a,
		Markdown:  renderer.RenderAnalysis(a),
		Timestamp: at,
	}
	if !summarize {
		return r, nil
	}

	summary, err := t.summarizer.Summarize(ctx, r.Markdown)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSummaryUnavailable, err)
	}
	r.Summary = summary
	return r, nil
}

// History returns the recorded valuations, newest first. When days is positive
// only the last 'days' days are returned.
func (t *Tracker) History(ctx context.Context, days int) ([]history.Entry, error) {
	return t.history.Query(ctx, days)
}
