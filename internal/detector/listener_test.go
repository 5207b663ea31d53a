// internal/detector/listener_test.go
package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/queue"
)

type fakeAdmitter struct {
	admitted []string
}

func (f *fakeAdmitter) Admit(_ context.Context, mint, _ string) queue.Status {
	f.admitted = append(f.admitted, mint)
	return queue.StatusPending
}

type fakeResolver struct {
	mint string
	err  error
}

func (f *fakeResolver) ResolveCreatedMint(context.Context, string) (string, error) {
	return f.mint, f.err
}

func newTestListener(admitter Admitter, resolver MintResolver) *Listener {
	cfg := DefaultConfig("wss://example.com", "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	return NewListener(cfg, admitter, resolver, zap.NewNop())
}

const creationPayload = `{
	"method": "logsNotification",
	"params": {
		"result": {
			"value": {
				"signature": "sig123",
				"err": null,
				"logs": [
					"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
					"Program log: Instruction: Create",
					"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P success"
				]
			}
		}
	}
}`

func TestHandleMessageAdmitsCreation(t *testing.T) {
	admitter := &fakeAdmitter{}
	l := newTestListener(admitter, &fakeResolver{mint: "mintNew"})

	l.handleMessage(context.Background(), []byte(creationPayload))

	assert.Equal(t, []string{"mintNew"}, admitter.admitted)
}

func TestHandleMessageIgnoresNonCreationLogs(t *testing.T) {
	admitter := &fakeAdmitter{}
	l := newTestListener(admitter, &fakeResolver{mint: "mintNew"})

	payload := `{
		"method": "logsNotification",
		"params": {"result": {"value": {
			"signature": "sig123",
			"err": null,
			"logs": ["Program log: Instruction: Buy"]
		}}}
	}`
	l.handleMessage(context.Background(), []byte(payload))

	assert.Empty(t, admitter.admitted)
}

func TestHandleMessageIgnoresFailedTransactions(t *testing.T) {
	admitter := &fakeAdmitter{}
	l := newTestListener(admitter, &fakeResolver{mint: "mintNew"})

	payload := `{
		"method": "logsNotification",
		"params": {"result": {"value": {
			"signature": "sig123",
			"err": {"InstructionError": [0, "Custom"]},
			"logs": ["Program log: Instruction: Create"]
		}}}
	}`
	l.handleMessage(context.Background(), []byte(payload))

	assert.Empty(t, admitter.admitted)
}

func TestHandleMessageSkipsUnresolvableMint(t *testing.T) {
	admitter := &fakeAdmitter{}
	l := newTestListener(admitter, &fakeResolver{err: errors.New("tx not found")})

	l.handleMessage(context.Background(), []byte(creationPayload))

	assert.Empty(t, admitter.admitted)
}

func TestHandleMessageIgnoresGarbage(t *testing.T) {
	admitter := &fakeAdmitter{}
	l := newTestListener(admitter, &fakeResolver{mint: "mintNew"})

	l.handleMessage(context.Background(), []byte("not json"))
	l.handleMessage(context.Background(), []byte(`{"method":"slotNotification"}`))

	assert.Empty(t, admitter.admitted)
}

func TestIsCreation(t *testing.T) {
	assert.True(t, isCreation([]string{"Program log: Instruction: Create"}))
	assert.False(t, isCreation([]string{"Program log: Instruction: Sell"}))
	assert.False(t, isCreation(nil))
}
