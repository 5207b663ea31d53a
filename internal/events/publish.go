// internal/events/publish.go
package events

// Typed publish helpers so callers never assemble event structs by
// hand. All of them are fire-and-forget and safe on a nil bus.

// EmitCandidateDetected announces a new identity entering the queue.
func (b *Bus) EmitCandidateDetected(mint, signature string) {
	_ = b.Publish(&CandidateDetectedEvent{
		BaseEvent: NewBase(CandidateDetected),
		TokenMint: mint,
		Signature: signature,
	})
}

// EmitCandidateRejected announces a terminal rejection.
func (b *Bus) EmitCandidateRejected(mint, reason string, attempts int) {
	_ = b.Publish(&CandidateRejectedEvent{
		BaseEvent: NewBase(CandidateRejected),
		TokenMint: mint,
		Reason:    reason,
		Attempts:  attempts,
	})
}

// EmitCandidateBought announces a completed allocation and buy.
func (b *Bus) EmitCandidateBought(mint string, entryPrice, amount float64, tradeNo int) {
	_ = b.Publish(&CandidateBoughtEvent{
		BaseEvent:  NewBase(CandidateBought),
		TokenMint:  mint,
		EntryPrice: entryPrice,
		Amount:     amount,
		TradeNo:    tradeNo,
	})
}

// EmitPoolDepleted announces an admission turned away on funds.
func (b *Bus) EmitPoolDepleted(mint string, balance, required float64) {
	_ = b.Publish(&PoolDepletedEvent{
		BaseEvent: NewBase(PoolDepleted),
		TokenMint: mint,
		Balance:   balance,
		Required:  required,
	})
}

// EmitHoldExtended announces a hold-window extension.
func (b *Bus) EmitHoldExtended(mint string, extraMinutes, newMaxMinutes int, confidence float64, signalsFired int, gainPct float64) {
	_ = b.Publish(&HoldExtendedEvent{
		BaseEvent:      NewBase(HoldExtended),
		TokenMint:      mint,
		ExtraMinutes:   extraMinutes,
		NewMaxMinutes:  newMaxMinutes,
		Confidence:     confidence,
		SignalsFired:   signalsFired,
		CurrentGainPct: gainPct,
	})
}

// EmitTradeClosed announces a recorded settlement.
func (b *Bus) EmitTradeClosed(mint string, pnlPercent, pnlAmount, holdMinutes float64) {
	_ = b.Publish(&TradeClosedEvent{
		BaseEvent:   NewBase(TradeClosed),
		TokenMint:   mint,
		PnLPercent:  pnlPercent,
		PnLAmount:   pnlAmount,
		HoldMinutes: holdMinutes,
		Profitable:  pnlPercent > 0,
	})
}

// EmitMonitoringStarted announces a new position tick session.
func (b *Bus) EmitMonitoringStarted(mint string, entryPrice float64) {
	_ = b.Publish(&MonitoringStartedEvent{
		BaseEvent:  NewBase(MonitoringStarted),
		TokenMint:  mint,
		EntryPrice: entryPrice,
	})
}

// EmitMonitoringStopped announces the end of a tick session.
func (b *Bus) EmitMonitoringStopped(mint, reason string) {
	_ = b.Publish(&MonitoringStoppedEvent{
		BaseEvent: NewBase(MonitoringStopped),
		TokenMint: mint,
		Reason:    reason,
	})
}
