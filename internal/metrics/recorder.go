package metrics

import "time"

// Recorder defines observability hooks for the engine: notification throughput, tick
// latency, persistence failures and the active reminder gauge. Implementations must
// tolerate concurrent calls from scheduler goroutines.
type Recorder interface {
	IncNotification(source string)
	ObserveTickDuration(job string, d time.Duration)
	IncPersistFailure(store string)
	IncJournalFailure()
	SetActiveReminders(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncNotification(string)                    {}
func (NoopRecorder) ObserveTickDuration(string, time.Duration) {}
func (NoopRecorder) IncPersistFailure(string)                  {}
func (NoopRecorder) IncJournalFailure()                        {}
func (NoopRecorder) SetActiveReminders(int)                    {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
