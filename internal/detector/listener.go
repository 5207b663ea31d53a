// internal/detector/listener.go
// Package detector watches the chain for token launches and feeds them
// into the admission queue.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-pool-sniper/internal/queue"
)

// Admitter receives detected launches.
type Admitter interface {
	Admit(ctx context.Context, mint, signature string) queue.Status
}

// MintResolver turns a creation signature into the new token's mint.
type MintResolver interface {
	ResolveCreatedMint(ctx context.Context, signature string) (string, error)
}

// Config tunes the websocket connection.
type Config struct {
	URL               string
	ProgramID         string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

func DefaultConfig(url, programID string) Config {
	return Config{
		URL:               url,
		ProgramID:         programID,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Listener holds a logsSubscribe stream against the launchpad program
// and admits every creation it sees. Disconnects trigger reconnection
// with exponential backoff; duplicates are the queue's problem.
type Listener struct {
	cfg      Config
	admitter Admitter
	resolver MintResolver
	logger   *zap.Logger
}

func NewListener(cfg Config, admitter Admitter, resolver MintResolver, logger *zap.Logger) *Listener {
	return &Listener{
		cfg:      cfg,
		admitter: admitter,
		resolver: resolver,
		logger:   logger.Named("detector"),
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Err       any      `json:"err"`
				Logs      []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Run blocks until ctx is cancelled, reconnecting as needed.
func (l *Listener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.ReconnectDelay
	bo.MaxInterval = l.cfg.MaxReconnectDelay

	for {
		if err := l.session(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := bo.NextBackOff()
			l.logger.Warn("stream dropped, reconnecting",
				zap.Error(err),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		return nil
	}
}

// session dials, subscribes and pumps notifications until the
// connection dies or ctx ends.
func (l *Listener) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	sub := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{l.cfg.ProgramID}},
			map[string]string{"commitment": "confirmed"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("logsSubscribe: %w", err)
	}

	l.logger.Info("launch stream connected",
		zap.String("url", l.cfg.URL),
		zap.String("program", l.cfg.ProgramID))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go l.pingLoop(ctx, conn, done)

	for {
		conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		l.handleMessage(ctx, payload)
	}
}

func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(l.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, payload []byte) {
	var note logsNotification
	if err := json.Unmarshal(payload, &note); err != nil || note.Method != "logsNotification" {
		return
	}

	value := note.Params.Result.Value
	if value.Err != nil || !isCreation(value.Logs) {
		return
	}

	mint, err := l.resolver.ResolveCreatedMint(ctx, value.Signature)
	if err != nil {
		l.logger.Warn("mint resolution failed",
			zap.String("signature", value.Signature),
			zap.Error(err))
		return
	}

	status := l.admitter.Admit(ctx, mint, value.Signature)
	l.logger.Debug("launch admitted",
		zap.String("mint", mint),
		zap.String("status", string(status)))
}

// isCreation matches the launchpad's create instruction in the log tail.
func isCreation(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "Instruction: Create") {
			return true
		}
	}
	return false
}
