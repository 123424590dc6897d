package models

// ProgressFrame is one JSON message pushed to subscribers of a project's
// progress channel. Progress is a pointer so that a frame can omit it
// entirely (status-only frames) while still being able to carry zero.
type ProgressFrame struct {
	Status   string `json:"status,omitempty"`
	Progress *int   `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunningFrame builds a frame announcing a running status with progress.
func RunningFrame(progress int, message string) ProgressFrame {
	return ProgressFrame{Status: StatusRunning, Progress: &progress, Message: message}
}

// ProgressOnlyFrame builds an incremental frame with no status change.
func ProgressOnlyFrame(progress int, message string) ProgressFrame {
	return ProgressFrame{Progress: &progress, Message: message}
}

// DoneFrame builds the terminal success frame.
func DoneFrame(message string) ProgressFrame {
	full := 100
	return ProgressFrame{Status: StatusDone, Progress: &full, Message: message}
}

// FailedFrame builds the terminal failure frame.
func FailedFrame(userError string) ProgressFrame {
	return ProgressFrame{Status: StatusFailed, Error: userError}
}

// CanceledFrame builds the terminal cancellation frame, preserving the last
// observed progress value.
func CanceledFrame(progress int) ProgressFrame {
	return ProgressFrame{Status: StatusCanceled, Progress: &progress}
}
