// internal/analyzer/analyzer.go
package analyzer

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/position"
)

// Detection thresholds, tuned for sub-minute memecoin price action.
const (
	minTicksForAnalysis = 4

	volumeROCThreshold    = 0.5
	momentumGainBreak     = 30.0
	shortMomentumTrigger  = 0.15
	acceleratingStrength  = 70.0
	whaleRatioThreshold   = 0.3
	patternSignalMinCount = 2
)

// ExitTier is one step of a staged exit plan.
type ExitTier struct {
	GainPercent float64
	SellPercent float64
	Reason      string
}

// HoldDecision is the analyzer's verdict for one evaluation pass.
type HoldDecision struct {
	ShouldHold    bool
	ExtendMinutes int
	Confidence    float64
	Signals       []Signal
	ExitTiers     []ExitTier
}

// Analyzer scores open positions from their tick history and decides
// whether the hold window earns an extension.
type Analyzer struct {
	shortWindow  time.Duration
	mediumWindow time.Duration
	logger       *zap.Logger
}

func New(logger *zap.Logger) *Analyzer {
	return &Analyzer{
		shortWindow:  30 * time.Second,
		mediumWindow: 60 * time.Second,
		logger:       logger.Named("analyzer"),
	}
}

// Evaluate runs all signal detectors over the position's history and
// maps the combined confidence through the gain-dependent hold policy.
func (a *Analyzer) Evaluate(p *position.Position) HoldDecision {
	ticks := p.History()
	gain := p.GainPercent()

	if len(ticks) < minTicksForAnalysis {
		// Too early to judge: keep holding on the original budget.
		return HoldDecision{
			ShouldHold: true,
			ExitTiers:  conservativeTiers(),
		}
	}

	signals := a.detect(ticks, gain)

	var confidence float64
	if len(signals) > 0 {
		var sum float64
		for _, s := range signals {
			sum += s.Strength
		}
		confidence = sum / float64(len(signals))
	}

	hold, extend := holdPolicy(gain, confidence)

	decision := HoldDecision{
		ShouldHold:    hold,
		ExtendMinutes: extend,
		Confidence:    confidence,
		Signals:       signals,
		ExitTiers:     tiersFor(confidence),
	}

	a.logger.Debug("position evaluated",
		zap.String("mint", p.Mint()),
		zap.Float64("gain_percent", gain),
		zap.Float64("confidence", confidence),
		zap.Int("signals_fired", len(signals)),
		zap.Bool("hold", hold),
		zap.Int("extend_minutes", extend))

	return decision
}

func (a *Analyzer) detect(ticks []position.Tick, gain float64) []Signal {
	var signals []Signal

	if roc, ok := volumeROC(ticks); ok && roc > volumeROCThreshold {
		signals = append(signals, Signal{
			Name:        SignalVolumeAcceleration,
			Strength:    clamp100(roc * 100),
			Description: fmt.Sprintf("volume accelerating at %.0f%% rate", roc*100),
		})
	}

	if s, fired := a.momentum(ticks, gain); fired {
		signals = append(signals, s)
	}

	var patterns []string
	if higherLows(ticks) {
		patterns = append(patterns, "higher lows")
	}
	if consolidating(ticks) {
		patterns = append(patterns, "consolidation")
	}
	if volumeCompressed(ticks) {
		patterns = append(patterns, "volume compression")
	}
	if len(patterns) >= patternSignalMinCount {
		signals = append(signals, Signal{
			Name:        SignalPattern,
			Strength:    clamp100(float64(len(patterns)) * 30),
			Description: strings.Join(patterns, " + "),
		})
	}

	if total := sumVolume(ticks); total > 0 {
		ratio := sumWhaleVolume(ticks) / total
		if ratio > whaleRatioThreshold {
			signals = append(signals, Signal{
				Name:        SignalWhaleActivity,
				Strength:    clamp100(ratio * 150),
				Description: fmt.Sprintf("whale transactions at %.0f%% of volume", ratio*100),
			})
		}
	}

	return signals
}

// momentum uses a fast trigger while the position is still young and a
// short-versus-medium comparison once the easy gains are in.
func (a *Analyzer) momentum(ticks []position.Tick, gain float64) (Signal, bool) {
	short := priceChange(windowTicks(ticks, a.shortWindow))

	if gain < momentumGainBreak {
		if short > shortMomentumTrigger {
			return Signal{
				Name:        SignalMomentum,
				Strength:    clamp100(short * 500),
				Description: fmt.Sprintf("price up %.1f%% in the short window", short*100),
			}, true
		}
		return Signal{}, false
	}

	medium := priceChange(windowTicks(ticks, a.mediumWindow))
	if short > 0 && short > medium {
		return Signal{
			Name:        SignalMomentum,
			Strength:    acceleratingStrength,
			Description: "short-term trend outpacing the medium-term",
		}, true
	}
	return Signal{}, false
}

// holdPolicy maps gain bracket and confidence to the hold verdict. The
// higher the unrealized gain, the more conviction it takes to stay in.
func holdPolicy(gain, confidence float64) (hold bool, extendMinutes int) {
	switch {
	case gain < 100:
		if confidence > 40 {
			if confidence > 60 {
				return true, 15
			}
			return true, 10
		}
	case gain < 300:
		if confidence > 50 {
			if confidence > 70 {
				return true, 10
			}
			return true, 5
		}
	case gain < 500:
		if confidence > 60 {
			if confidence > 80 {
				return true, 10
			}
			return true, 3
		}
	default:
		if confidence > 70 {
			if confidence > 85 {
				return true, 8
			}
			return true, 5
		}
	}
	return false, 0
}

// tiersFor picks the staged exit preset for the current confidence.
func tiersFor(confidence float64) []ExitTier {
	switch {
	case confidence > 70:
		return aggressiveTiers()
	case confidence > 50:
		return balancedTiers()
	default:
		return conservativeTiers()
	}
}

// aggressiveTiers rides high-conviction runners and leaves a 20% moon bag.
func aggressiveTiers() []ExitTier {
	return []ExitTier{
		{GainPercent: 200, SellPercent: 20, Reason: "first profit take"},
		{GainPercent: 400, SellPercent: 20, Reason: "second profit take"},
		{GainPercent: 600, SellPercent: 20, Reason: "third profit take"},
		{GainPercent: 1000, SellPercent: 20, Reason: "final scale out"},
	}
}

func balancedTiers() []ExitTier {
	return []ExitTier{
		{GainPercent: 100, SellPercent: 25, Reason: "first profit take"},
		{GainPercent: 300, SellPercent: 25, Reason: "second profit take"},
		{GainPercent: 500, SellPercent: 25, Reason: "third profit take"},
	}
}

// conservativeTiers exits fully on low conviction.
func conservativeTiers() []ExitTier {
	return []ExitTier{
		{GainPercent: 50, SellPercent: 33, Reason: "early profit take"},
		{GainPercent: 100, SellPercent: 33, Reason: "second profit take"},
		{GainPercent: 200, SellPercent: 34, Reason: "full exit"},
	}
}

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
