package conversation

import "fmt"

// TurnError reports a turn that failed. No checkpoint was written for it.
type TurnError struct {
	ThreadID string
	Step     Step
	Err      error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn on thread %q failed during %s: %v", e.ThreadID, e.Step, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}
