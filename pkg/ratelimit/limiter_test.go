package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type LimiterTestSuite struct {
	suite.Suite
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterTestSuite))
}

func (suite *LimiterTestSuite) TestParseRate() {
	testCases := []struct {
		input   string
		want    Rate
		wantErr bool
	}{
		{input: "10/minute", want: Rate{Limit: 10, Window: time.Minute}},
		{input: "20/hour", want: Rate{Limit: 20, Window: time.Hour}},
		{input: "100/second", want: Rate{Limit: 100, Window: time.Second}},
		{input: "5/day", want: Rate{Limit: 5, Window: 24 * time.Hour}},
		{input: "nonsense", wantErr: true},
		{input: "0/minute", wantErr: true},
		{input: "-1/minute", wantErr: true},
		{input: "10/fortnight", wantErr: true},
	}

	for _, tc := range testCases {
		suite.Run(tc.input, func() {
			rate, err := ParseRate(tc.input)
			if tc.wantErr {
				suite.Error(err)

				return
			}

			suite.NoError(err)
			suite.Equal(tc.want, rate)
			suite.Equal(tc.input, rate.String())
		})
	}
}

func (suite *LimiterTestSuite) TestSequentialAdmissions() {
	now := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, Rate{Limit: 10, Window: time.Minute}, nil)
	ctx := context.Background()

	// Ten consecutive admissions succeed with remaining 9,8,...,0.
	for i := 0; i < 10; i++ {
		result, err := limiter.Admit(ctx, "yfinance", "/equity/price/historical")
		suite.Require().NoError(err)
		suite.True(result.Allowed)
		suite.Equal(9-i, result.Remaining)
	}

	// The eleventh call in the same window is rejected.
	result, err := limiter.Admit(ctx, "yfinance", "/equity/price/historical")
	suite.Require().NoError(err)
	suite.False(result.Allowed)
	suite.Equal(0, result.Remaining)

	// After the window elapses the bucket refills.
	now = now.Add(time.Minute)

	result, err = limiter.Admit(ctx, "yfinance", "/equity/price/historical")
	suite.Require().NoError(err)
	suite.True(result.Allowed)
	suite.Equal(9, result.Remaining)
}

func (suite *LimiterTestSuite) TestConcurrentAdmissionsNeverOverAdmit() {
	store := NewMemoryStore()
	limiter := NewLimiter(store, Rate{Limit: 10, Window: time.Minute}, nil)
	ctx := context.Background()

	const calls = 100

	var wg sync.WaitGroup

	results := make([]Result, calls)

	for i := 0; i < calls; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			result, err := limiter.Admit(ctx, "oecd", "/economy/cli")
			suite.NoError(err)
			results[i] = result
		}(i)
	}

	wg.Wait()

	allowed := 0
	for _, r := range results {
		if r.Allowed {
			allowed++
		}

		suite.GreaterOrEqual(r.Remaining, 0)
	}

	suite.Equal(10, allowed)

	final, err := limiter.Peek(ctx, "oecd", "/economy/cli")
	suite.Require().NoError(err)
	suite.Equal(0, final.Remaining)
}

func (suite *LimiterTestSuite) TestResetPreservesWindowAlignment() {
	now := time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, Rate{Limit: 2, Window: time.Minute}, nil)
	ctx := context.Background()

	first, err := limiter.Admit(ctx, "fmp", "/equity/price/quote")
	suite.Require().NoError(err)
	// Window boundary aligns to the wall clock, not to the first call.
	suite.Equal(time.Date(2024, 3, 1, 10, 1, 0, 0, time.UTC), first.ResetAt)

	// Jump past several windows: reset_at advances in whole windows, keeping
	// alignment instead of re-anchoring to "now".
	now = time.Date(2024, 3, 1, 10, 3, 45, 0, time.UTC)

	result, err := limiter.Admit(ctx, "fmp", "/equity/price/quote")
	suite.Require().NoError(err)
	suite.True(result.Allowed)
	suite.Equal(time.Date(2024, 3, 1, 10, 4, 0, 0, time.UTC), result.ResetAt)
}

func (suite *LimiterTestSuite) TestResetAtOnlyMovesForward() {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })
	limiter := NewLimiter(store, Rate{Limit: 5, Window: time.Minute}, nil)
	ctx := context.Background()

	first, err := limiter.Admit(ctx, "sec", "/equity/filings")
	suite.Require().NoError(err)

	now = now.Add(30 * time.Second)

	second, err := limiter.Admit(ctx, "sec", "/equity/filings")
	suite.Require().NoError(err)
	suite.False(second.ResetAt.Before(first.ResetAt))
}

func (suite *LimiterTestSuite) TestRateResolutionPrecedence() {
	limiter := NewLimiter(NewMemoryStore(), MustParseRate("10/minute"), nil)
	limiter.SetProviderRate("oecd", MustParseRate("20/hour"))
	limiter.SetRouteRate("oecd", "/economy/cli", MustParseRate("5/hour"))

	suite.Equal(MustParseRate("5/hour"), limiter.RateFor("oecd", "/economy/cli"))
	suite.Equal(MustParseRate("20/hour"), limiter.RateFor("oecd", "/economy/cpi"))
	suite.Equal(MustParseRate("10/minute"), limiter.RateFor("yfinance", "/equity/price/historical"))
}

func (suite *LimiterTestSuite) TestBucketsAreIndependentPerRoute() {
	limiter := NewLimiter(NewMemoryStore(), Rate{Limit: 1, Window: time.Minute}, nil)
	ctx := context.Background()

	first, err := limiter.Admit(ctx, "yfinance", "/equity/price/historical")
	suite.Require().NoError(err)
	suite.True(first.Allowed)

	// Same provider, different route: a fresh bucket.
	other, err := limiter.Admit(ctx, "yfinance", "/equity/price/quote")
	suite.Require().NoError(err)
	suite.True(other.Allowed)

	// Same route again: exhausted.
	again, err := limiter.Admit(ctx, "yfinance", "/equity/price/historical")
	suite.Require().NoError(err)
	suite.False(again.Allowed)
}

func (suite *LimiterTestSuite) TestPeekDoesNotConsume() {
	limiter := NewLimiter(NewMemoryStore(), Rate{Limit: 3, Window: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.Peek(ctx, "yfinance", "/equity/price/quote")
		suite.Require().NoError(err)
		suite.Equal(3, result.Remaining)
	}
}

func (suite *LimiterTestSuite) TestAdmitRespectsCancelledContext() {
	limiter := NewLimiter(NewMemoryStore(), Rate{Limit: 3, Window: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Cancellation strictly before admission consumes no quota.
	_, err := limiter.Admit(ctx, "yfinance", "/equity/price/quote")
	suite.Error(err)

	result, err := limiter.Peek(context.Background(), "yfinance", "/equity/price/quote")
	suite.Require().NoError(err)
	suite.Equal(3, result.Remaining)
}

func (suite *LimiterTestSuite) TestWaitAdmitHonorsDeadline() {
	limiter := NewLimiter(NewMemoryStore(), Rate{Limit: 1, Window: time.Hour}, nil)
	ctx := context.Background()

	first, err := limiter.WaitAdmit(ctx, "oecd", "/economy/cli")
	suite.Require().NoError(err)
	suite.True(first.Allowed)

	// The bucket is empty and resets in an hour; a short deadline must bound
	// the wait instead of blocking.
	bounded, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = limiter.WaitAdmit(bounded, "oecd", "/economy/cli")
	suite.Error(err)
	suite.Less(time.Since(start), 5*time.Second)
}

func (suite *LimiterTestSuite) TestWaitAdmitSucceedsAfterReset() {
	now := time.Date(2024, 3, 1, 10, 0, 59, 900000000, time.UTC)

	var mu sync.Mutex

	store := NewMemoryStoreWithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return now
	})
	limiter := NewLimiter(store, Rate{Limit: 1, Window: time.Minute}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := limiter.Admit(ctx, "fred", "/economy/cpi")
	suite.Require().NoError(err)
	suite.True(first.Allowed)

	// ResetAt is ~100ms away in wall-clock terms; advance the fake clock so
	// the retry after the sleep observes a fresh window.
	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()

	result, err := limiter.WaitAdmit(ctx, "fred", "/economy/cpi")
	suite.Require().NoError(err)
	suite.True(result.Allowed)
	suite.Equal(0, result.Remaining)
}
