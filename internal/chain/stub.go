// internal/chain/stub.go
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-pool-sniper/internal/position"
)

// StubProvider is a deterministic DataProvider for tests and dry runs.
// Every answer is scripted per mint; nothing here is random.
type StubProvider struct {
	mu sync.Mutex

	liquidity   map[string]float64
	authorities map[string]Authorities
	ticks       map[string][]position.Tick
	tickIndex   map[string]int

	// failures holds the number of transient errors still to be served
	// for a mint before real data is returned.
	failures map[string]int

	// Latency is added to every call, to exercise processing budgets.
	Latency time.Duration
}

// NewStubProvider returns an empty stub; unknown mints report a transient
// "data not yet available" error, mirroring a just-launched token.
func NewStubProvider() *StubProvider {
	return &StubProvider{
		liquidity:   make(map[string]float64),
		authorities: make(map[string]Authorities),
		ticks:       make(map[string][]position.Tick),
		tickIndex:   make(map[string]int),
		failures:    make(map[string]int),
	}
}

// SetToken scripts liquidity and authority state for a mint.
func (s *StubProvider) SetToken(mint string, liquidity float64, auth Authorities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liquidity[mint] = liquidity
	s.authorities[mint] = auth
}

// SetTicks scripts the tick sequence for a mint; the last tick repeats
// once the script is exhausted.
func (s *StubProvider) SetTicks(mint string, ticks []position.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[mint] = ticks
	s.tickIndex[mint] = 0
}

// FailNext makes the next n calls for a mint fail with a transient error.
func (s *StubProvider) FailNext(mint string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[mint] = n
}

func (s *StubProvider) checkAvailable(ctx context.Context, mint string) error {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.failures[mint]; n > 0 {
		s.failures[mint] = n - 1
		return fmt.Errorf("chain data for %s not yet available", mint)
	}
	if _, ok := s.liquidity[mint]; !ok {
		return fmt.Errorf("chain data for %s not yet available", mint)
	}
	return nil
}

// GetLiquidity implements DataProvider.
func (s *StubProvider) GetLiquidity(ctx context.Context, mint string) (float64, error) {
	if err := s.checkAvailable(ctx, mint); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidity[mint], nil
}

// GetAuthorities implements DataProvider.
func (s *StubProvider) GetAuthorities(ctx context.Context, mint string) (Authorities, error) {
	if err := s.checkAvailable(ctx, mint); err != nil {
		return Authorities{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorities[mint], nil
}

// GetTick implements DataProvider, replaying the scripted sequence.
func (s *StubProvider) GetTick(ctx context.Context, mint string) (position.Tick, error) {
	if err := s.checkAvailable(ctx, mint); err != nil {
		return position.Tick{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	script := s.ticks[mint]
	if len(script) == 0 {
		return position.Tick{}, fmt.Errorf("no ticks scripted for %s", mint)
	}

	idx := s.tickIndex[mint]
	if idx >= len(script) {
		idx = len(script) - 1
	} else {
		s.tickIndex[mint] = idx + 1
	}

	tick := script[idx]
	if tick.Time.IsZero() {
		tick.Time = time.Now()
	}
	return tick, nil
}
