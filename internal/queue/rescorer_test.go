// internal/queue/rescorer_test.go
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/chain"
	"solana-pool-sniper/internal/pool"
)

func newTestRescorer(q *Queue, cooldown time.Duration) *Rescorer {
	r := NewRescorer(q, time.Minute, cooldown, testConfig().MaxAttempts, zap.NewNop())
	r.pause = time.Millisecond
	return r
}

func TestSweepRetriesPendingCandidate(t *testing.T) {
	q, p, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.FailNext(testMint, 1)

	require.Equal(t, StatusPending, q.Admit(context.Background(), testMint, "sig-1"))

	r := newTestRescorer(q, 0)
	r.sweep(context.Background())

	cand, _ := q.Candidate(testMint)
	assert.Equal(t, StatusBought, cand.Status)
	assert.Equal(t, 2, cand.Attempts)
	assert.Equal(t, 585.0, p.Snapshot().Balance)
}

func TestSweepHonorsCooldown(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.FailNext(testMint, 1)
	q.Admit(context.Background(), testMint, "sig-1")

	r := newTestRescorer(q, time.Hour)
	r.sweep(context.Background())

	cand, _ := q.Candidate(testMint)
	assert.Equal(t, StatusPending, cand.Status, "a candidate on cooldown must not be retried")
	assert.Equal(t, 1, cand.Attempts)
}

func TestSweepRejectsExhaustedCandidate(t *testing.T) {
	q, _, stub, _ := newTestQueue(t, 600)
	goodToken(stub, testMint, 0.002)
	stub.FailNext(testMint, 10)

	q.Admit(context.Background(), testMint, "sig-1")

	r := newTestRescorer(q, 0)
	// Four more failing attempts reach the limit of five.
	for i := 0; i < 4; i++ {
		r.sweep(context.Background())
	}
	require.Equal(t, 5, q.Attempts(testMint))

	r.sweep(context.Background())

	cand, _ := q.Candidate(testMint)
	assert.Equal(t, StatusRejected, cand.Status)
	assert.Contains(t, cand.Reason, "max scoring attempts")
}

func TestSweepAbortsWhenPoolCannotFund(t *testing.T) {
	log := zap.NewNop()
	p := pool.New(10, pool.NewLedger(), nil, log)
	stub := chain.NewStubProvider()
	q := New(testConfig(), p, stub, failingGateway{}, nil, log)

	// Get two candidates stuck in pending before the pool runs dry.
	q.mu.Lock()
	for _, mint := range []string{"mintA", "mintB"} {
		q.processed[mint] = struct{}{}
		q.candidates[mint] = &Candidate{
			Mint:      mint,
			Status:    StatusPending,
			Attempts:  1,
			FirstSeen: time.Now().Add(-time.Minute),
		}
	}
	q.mu.Unlock()

	r := newTestRescorer(q, 0)
	r.sweep(context.Background())

	for _, mint := range []string{"mintA", "mintB"} {
		cand, _ := q.Candidate(mint)
		assert.Equal(t, StatusPending, cand.Status)
		assert.Equal(t, 1, cand.Attempts, "an aborted sweep must not burn attempts")
	}
}

func TestRescorerStartStop(t *testing.T) {
	q, _, _, _ := newTestQueue(t, 600)

	r := NewRescorer(q, 10*time.Millisecond, 0, 5, zap.NewNop())
	r.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	r.Stop()
}
