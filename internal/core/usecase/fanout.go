package usecase

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
)

const defaultBackendTimeout = 1500 * time.Millisecond

type FanoutConfig struct {
	// Timeout bounds each backend call independently.
	Timeout time.Duration
	// RateRPS limits calls per backend per second; zero disables limiting.
	RateRPS   int
	RateBurst int
}

// FanoutCoordinator issues one concurrent call per backend and collects every
// outcome. It always waits for all branches to settle (success, error or
// timeout) because coverage accounting needs to know which sources were
// silent; it never fails the overall call on a single backend.
type FanoutCoordinator struct {
	backends []ports.SearchBackend
	timeout  time.Duration
	limiters map[string]*rate.Limiter
}

func NewFanoutCoordinator(backends []ports.SearchBackend, cfg FanoutConfig) *FanoutCoordinator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBackendTimeout
	}

	limiters := make(map[string]*rate.Limiter, len(backends))
	if cfg.RateRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		for _, b := range backends {
			limiters[b.Name()] = rate.NewLimiter(rate.Limit(cfg.RateRPS), burst)
		}
	}

	return &FanoutCoordinator{
		backends: backends,
		timeout:  timeout,
		limiters: limiters,
	}
}

// Dispatch fans the query out to every backend. Responses come back in
// backend registration order. Cancelling ctx propagates into every branch;
// unresolved branches settle as errored for coverage purposes.
func (c *FanoutCoordinator) Dispatch(ctx context.Context, query domain.Query) []domain.AdapterResponse {
	type settled struct {
		idx  int
		resp domain.AdapterResponse
	}

	out := make([]domain.AdapterResponse, len(c.backends))
	ch := make(chan settled, len(c.backends))

	for i, backend := range c.backends {
		go func(i int, backend ports.SearchBackend) {
			ch <- settled{idx: i, resp: c.call(ctx, backend, query)}
		}(i, backend)
	}

	for range c.backends {
		s := <-ch
		out[s.idx] = s.resp
	}
	return out
}

func (c *FanoutCoordinator) call(ctx context.Context, backend ports.SearchBackend, query domain.Query) domain.AdapterResponse {
	start := time.Now()
	resp := domain.AdapterResponse{SourceName: backend.Name()}

	if limiter := c.limiters[backend.Name()]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			resp.Err = domain.WrapError(domain.ErrAdapter, "rate limit "+backend.Name(), err)
			resp.LatencyMS = time.Since(start).Milliseconds()
			return resp
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		results []domain.SearchResult
		err     error
	}
	// Buffered so a branch whose backend ignores cancellation can still
	// deliver after the deadline without blocking; that late result is
	// discarded, never merged retroactively.
	done := make(chan outcome, 1)

	go func() {
		results, err := backend.Search(callCtx, query.Text, query.Filters, query.Limit)
		done <- outcome{results: results, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			resp.Err = domain.WrapError(domain.ErrAdapter, "search "+backend.Name(), o.err)
		} else {
			resp.Results = stampRanks(backend.Name(), o.results)
		}
	case <-callCtx.Done():
		resp.Err = domain.WrapError(domain.ErrAdapter, "search "+backend.Name(), callCtx.Err())
	}

	resp.LatencyMS = time.Since(start).Milliseconds()
	return resp
}

// stampRanks normalizes each result to carry its source name and a 1-based
// rank within that source.
func stampRanks(source string, results []domain.SearchResult) []domain.SearchResult {
	for i := range results {
		if results[i].Rank <= 0 {
			results[i].Rank = i + 1
		}
		if len(results[i].Sources) == 0 {
			results[i].Sources = []string{source}
		}
	}
	return results
}
