package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// flakyStore wraps a Memory tier and fails on demand, standing in for a
// remote tier outage.
type flakyStore struct {
	inner    *Memory
	getErr   error
	setErr   error
	setCalls int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}

	return f.inner.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}

	return f.inner.Set(ctx, key, value, ttl)
}

func (f *flakyStore) Close() error {
	return f.inner.Close()
}

type TieredCacheTestSuite struct {
	suite.Suite
	ctx context.Context
}

func TestTieredCacheSuite(t *testing.T) {
	suite.Run(t, new(TieredCacheTestSuite))
}

func (suite *TieredCacheTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

func (suite *TieredCacheTestSuite) TestSetThenGetRoundTrip() {
	tiered := NewTiered(NewMemory(), NewMemory(), nil)
	payload := []byte("envelope-bytes")

	suite.NoError(tiered.Set(suite.ctx, "k1", payload, time.Minute))

	value, outcome, err := tiered.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.Equal(OutcomeLocalHit, outcome)
	suite.Equal(payload, value)
}

func (suite *TieredCacheTestSuite) TestGetOnNeverSetKeyIsMiss() {
	tiered := NewTiered(NewMemory(), NewMemory(), nil)

	value, outcome, err := tiered.Get(suite.ctx, "absent")
	suite.NoError(err)
	suite.Equal(OutcomeMiss, outcome)
	suite.Nil(value)
}

func (suite *TieredCacheTestSuite) TestRemoteHitBackfillsLocal() {
	local := NewMemory()
	remote := NewMemory()
	tiered := NewTiered(local, remote, nil)
	payload := []byte("remote-only")

	// Populate only the remote tier, as another process would have.
	suite.NoError(remote.Set(suite.ctx, "k1", payload, time.Minute))

	value, outcome, err := tiered.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.Equal(OutcomeRemoteHit, outcome)
	suite.Equal(payload, value)

	// The local tier now answers directly.
	_, outcome, err = tiered.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.Equal(OutcomeLocalHit, outcome)
}

func (suite *TieredCacheTestSuite) TestRemoteSetFailureIsSwallowed() {
	remote := &flakyStore{inner: NewMemory(), setErr: errors.New("redis down")}
	tiered := NewTiered(NewMemory(), remote, nil)

	// A remote-tier outage during Set must not surface.
	suite.NoError(tiered.Set(suite.ctx, "k1", []byte("v"), time.Minute))
	suite.Equal(1, remote.setCalls)

	// The local tier still serves the value.
	value, outcome, err := tiered.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.Equal(OutcomeLocalHit, outcome)
	suite.Equal([]byte("v"), value)
}

func (suite *TieredCacheTestSuite) TestRemoteGetFailureDegradesToMiss() {
	remote := &flakyStore{inner: NewMemory(), getErr: errors.New("redis down")}
	tiered := NewTiered(NewMemory(), remote, nil)

	_, outcome, err := tiered.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.Equal(OutcomeMiss, outcome)
}

func (suite *TieredCacheTestSuite) TestNilRemoteDegradesToLocalOnly() {
	tiered := NewTiered(NewMemory(), nil, nil)

	suite.NoError(tiered.Set(suite.ctx, "k1", []byte("v"), time.Minute))

	value, outcome, err := tiered.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.Equal(OutcomeLocalHit, outcome)
	suite.Equal([]byte("v"), value)
}

func (suite *TieredCacheTestSuite) TestMemoryExpiry() {
	local := NewMemory()

	suite.NoError(local.Set(suite.ctx, "k1", []byte("v"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := local.Get(suite.ctx, "k1")
	suite.NoError(err)
	suite.False(ok)
}

func (suite *TieredCacheTestSuite) TestMemoryConcurrentAccess() {
	local := NewMemory()

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			key := string(rune('a' + i%8))
			suite.NoError(local.Set(suite.ctx, key, []byte{byte(i)}, time.Minute))
		}(i)

		go func(i int) {
			defer wg.Done()

			key := string(rune('a' + i%8))
			_, _, err := local.Get(suite.ctx, key)
			suite.NoError(err)
		}(i)
	}

	wg.Wait()
}
