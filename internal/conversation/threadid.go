package conversation

import "time"

const threadIDPrefix = "user@"

// NewThreadID names a new thread after the local time it was created, e.g. "user@20260115_093000S". The trailing
// "S" is part of the established format and ids compare by string, not by time.
func NewThreadID(now time.Time) string {
	return threadIDPrefix + now.Format("20060102_150405") + "S"
}
