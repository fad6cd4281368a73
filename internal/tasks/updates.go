package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server logs.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	WarmStart Phase = iota
	WarmPlaylist
	WarmDone
)

func (p Phase) String() string {
	switch p {
	case WarmStart:
		return "warm_start"
	case WarmPlaylist:
		return "warm_playlist"
	case WarmDone:
		return "warm_done"
	default:
		return ""
	}
}

func warmStartUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmStart,
		Total:   total,
		Message: fmt.Sprintf("Loading %d playlists...", total),
	}
}

func warmedUpdate(step, total int, result WarmResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, result.PlaylistID, result.Tracks),
		Data:    result,
	}
}

func warmFailedUpdate(step, total int, result WarmResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, result.PlaylistID, result.Error),
		Data:    result,
	}
}

func warmDoneUpdate(report *WarmReport) ProgressUpdate {
	total := len(report.Results)
	return ProgressUpdate{
		Phase:   WarmDone,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d of %d playlists", report.Loaded, total),
		Data:    report,
	}
}
