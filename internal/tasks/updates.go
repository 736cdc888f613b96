package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SyncInstruments Phase = iota
	FetchHistory
	ComputeFeatures
	ScorePredictions
	EvaluateAlerts
)

func (p Phase) String() string {
	switch p {
	case SyncInstruments:
		return "sync_instruments"
	case FetchHistory:
		return "fetch_history"
	case ComputeFeatures:
		return "compute_features"
	case ScorePredictions:
		return "score_predictions"
	case EvaluateAlerts:
		return "evaluate_alerts"
	default:
		return ""
	}
}

func syncInstrumentsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncInstruments,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Synced %d instruments from the broker dump", count),
	}
}

func fetchHistoryUpdate(step, total int, symbol string, candles int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d new bars", step, total, symbol, candles),
	}
}

func computeFeaturesUpdate(step, total int, symbol string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ComputeFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Computing features: %s", step, total, symbol),
	}
}

func scoringUpdate(scored, total int, regime string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScorePredictions,
		Step:    scored,
		Total:   total,
		Message: fmt.Sprintf("Scored %d of %d instruments (%s tape)", scored, total, regime),
	}
}

func alertUpdate(step, total int, symbol string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EvaluateAlerts,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Alert fired: %s", step, total, symbol),
	}
}
