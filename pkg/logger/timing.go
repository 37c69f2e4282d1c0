package logger

import (
	"sync"
	"time"
)

// StageTimer measures the duration of a pipeline stage and logs it on
// completion. The elapsed milliseconds feed the processing log's
// duration metrics.
type StageTimer struct {
	logger    Logger
	stage     string
	startTime time.Time
	stopped   bool
	elapsed   time.Duration
	mutex     sync.Mutex
}

// NewStageTimer starts timing a named stage
func NewStageTimer(log Logger, stage string) *StageTimer {
	if log == nil {
		log = GetGlobalLogger()
	}

	t := &StageTimer{
		logger:    log.WithComponent("timing"),
		stage:     stage,
		startTime: time.Now(),
	}

	t.logger.WithField("stage", stage).Debug("Stage started")
	return t
}

// Stop ends the timer and returns the elapsed milliseconds. Subsequent
// calls return the same value.
func (t *StageTimer) Stop() int64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.stopped {
		t.elapsed = time.Since(t.startTime)
		t.stopped = true
		t.logger.WithFields(Fields{
			"stage":       t.stage,
			"duration_ms": t.elapsed.Milliseconds(),
		}).Debug("Stage finished")
	}

	return t.elapsed.Milliseconds()
}

// ElapsedMillis returns the running elapsed time without stopping the timer
func (t *StageTimer) ElapsedMillis() int64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.stopped {
		return t.elapsed.Milliseconds()
	}
	return time.Since(t.startTime).Milliseconds()
}
