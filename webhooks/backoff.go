package webhooks

import "time"

// BackoffTable maps the attempt counter, after it has been incremented for a
// failed attempt, to the delay before the next one. A table of length n
// schedules n retries; failure n+1 is permanent.
type BackoffTable struct {
	Delays []time.Duration
}

func NewBackoffTable(delays []time.Duration) BackoffTable {
	return BackoffTable{Delays: append([]time.Duration(nil), delays...)}
}

func DefaultBackoffTable() BackoffTable {
	return NewBackoffTable([]time.Duration{
		0,
		60 * time.Second,
		300 * time.Second,
		1800 * time.Second,
		7200 * time.Second,
	})
}

func TestBackoffTable() BackoffTable {
	return NewBackoffTable([]time.Duration{
		0,
		5 * time.Second,
		10 * time.Second,
		15 * time.Second,
		20 * time.Second,
	})
}

// Next returns the retry delay for a log whose attempts counter now equals
// attempts. ok is false once the table is exhausted.
func (t BackoffTable) Next(attempts int) (time.Duration, bool) {
	if attempts < 1 || attempts > len(t.Delays) {
		return 0, false
	}
	delay := t.Delays[attempts-1]
	if delay < 0 {
		delay = 0
	}
	return delay, true
}

func (t BackoffTable) Len() int {
	return len(t.Delays)
}
