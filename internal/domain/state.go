package domain

import "time"

// BotState is the per-market lifecycle state the orchestrator acts on. It is
// recomputed from the market's calendar distance every cycle, so repeated
// classification to the same state is a no-op for already-running loops.
type BotState string

const (
	StateInitializing      BotState = "initializing"
	StateScanning          BotState = "scanning"
	StatePositioning       BotState = "positioning"
	StateMarketMaking      BotState = "market_making"
	StateDayOfMonitoring   BotState = "day_of_monitoring"
	StateWaitingResolution BotState = "waiting_resolution"
	StateStopped           BotState = "stopped"
	StateError             BotState = "error"
)

// ClassifyInput carries everything Classify needs about one market.
type ClassifyInput struct {
	Market       *Market
	Now          time.Time
	Halted       bool // circuit breaker tripped this session
	MakerEnabled bool
	AdvanceDays  int
}

// Classify maps a market's situation onto a BotState. Halted is sticky and
// wins over everything; a halted session only resumes after a restart. The
// target day itself outranks every trading state: the market hands off to
// the real-time monitor.
func Classify(in ClassifyInput) BotState {
	if in.Halted {
		return StateStopped
	}
	if in.Market == nil || in.Market.Closed {
		return StateStopped
	}

	days := in.Market.DaysUntilTarget(in.Now)
	switch {
	case days == 0:
		return StateDayOfMonitoring
	case days < 0:
		return StateWaitingResolution
	case !in.Market.Active:
		return StateScanning
	case days <= in.AdvanceDays:
		if in.MakerEnabled {
			return StateMarketMaking
		}
		return StatePositioning
	default:
		return StateScanning
	}
}
