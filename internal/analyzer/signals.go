// internal/analyzer/signals.go
package analyzer

import (
	"time"

	"solana-pool-sniper/internal/position"
)

// Signal names as they appear in decisions and logs.
const (
	SignalVolumeAcceleration = "volume_acceleration"
	SignalMomentum           = "momentum"
	SignalPattern            = "pattern"
	SignalWhaleActivity      = "whale_activity"
)

// Signal is one fired indicator with its strength on a 0-100 scale and
// a human-readable account of what tripped it.
type Signal struct {
	Name        string
	Strength    float64
	Description string
}

// windowTicks returns the ticks observed within the trailing window.
func windowTicks(ticks []position.Tick, window time.Duration) []position.Tick {
	if len(ticks) == 0 {
		return nil
	}
	cutoff := ticks[len(ticks)-1].Time.Add(-window)
	for i, t := range ticks {
		if !t.Time.Before(cutoff) {
			return ticks[i:]
		}
	}
	return nil
}

// priceChange returns the fractional price move across ticks, first to last.
func priceChange(ticks []position.Tick) float64 {
	if len(ticks) < 2 || ticks[0].Price <= 0 {
		return 0
	}
	return (ticks[len(ticks)-1].Price - ticks[0].Price) / ticks[0].Price
}

func sumVolume(ticks []position.Tick) float64 {
	var total float64
	for _, t := range ticks {
		total += t.Volume
	}
	return total
}

func sumWhaleVolume(ticks []position.Tick) float64 {
	var total float64
	for _, t := range ticks {
		total += t.WhaleVolume
	}
	return total
}

// volumeROC compares traded volume in the newer half of the ticks
// against the older half and returns the fractional rate of change.
func volumeROC(ticks []position.Tick) (float64, bool) {
	if len(ticks) < 4 {
		return 0, false
	}
	mid := len(ticks) / 2
	older := sumVolume(ticks[:mid])
	newer := sumVolume(ticks[mid:])
	if older <= 0 {
		return 0, false
	}
	return (newer - older) / older, true
}

// lowOf returns the minimum price across ticks.
func lowOf(ticks []position.Tick) float64 {
	low := ticks[0].Price
	for _, t := range ticks[1:] {
		if t.Price < low {
			low = t.Price
		}
	}
	return low
}

// higherLows reports whether the newer half of the ticks bottomed above
// the older half.
func higherLows(ticks []position.Tick) bool {
	if len(ticks) < 4 {
		return false
	}
	mid := len(ticks) / 2
	return lowOf(ticks[mid:]) > lowOf(ticks[:mid])
}

// consolidating reports a tight price range relative to the mean,
// the quiet base that often precedes a continuation leg.
func consolidating(ticks []position.Tick) bool {
	if len(ticks) < 4 {
		return false
	}
	low := ticks[0].Price
	high := ticks[0].Price
	var mean float64
	for _, t := range ticks {
		if t.Price < low {
			low = t.Price
		}
		if t.Price > high {
			high = t.Price
		}
		mean += t.Price
	}
	mean /= float64(len(ticks))
	if mean <= 0 {
		return false
	}
	return (high-low)/mean < 0.10
}

// volumeCompressed reports fading volume into the newer half, sellers
// drying up rather than interest dying.
func volumeCompressed(ticks []position.Tick) bool {
	if len(ticks) < 4 {
		return false
	}
	mid := len(ticks) / 2
	older := sumVolume(ticks[:mid])
	newer := sumVolume(ticks[mid:])
	return older > 0 && newer < older*0.7
}
