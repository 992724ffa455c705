package job

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Phase is one caller-visible stage of a transcription job
type Phase string

const (
	PhaseAcquiring    Phase = "acquiring"
	PhaseExtracting   Phase = "extracting"
	PhaseTranscribing Phase = "transcribing"
	PhaseWriting      Phase = "writing"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
	PhaseCancelled    Phase = "cancelled"
)

// IsTerminal reports whether the phase ends the job
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseDone, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// Job is one end-to-end transcription request. It lives for the duration
// of a single run; the only persistence is the files written into its
// working folder.
type Job struct {
	ID         string
	Source     string // local path or remote URL
	Remote     bool
	Language   string
	ChunkSec   int
	Folder     string // per-job working folder, set during acquisition
	OutputPath string // transcript path, set during the pipeline run
}

// New creates a Job with a fresh identifier
func New(source string, remote bool, language string, chunkSec int) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Source:   source,
		Remote:   remote,
		Language: language,
		ChunkSec: chunkSec,
	}
}

// Status is a snapshot of a job's progress for callers
type Status struct {
	JobID    string
	Phase    Phase
	Percent  float64
	Detail   string
	Err      string
	Finished bool
}

// Tracker guards a job's phase transitions and progress. Progress is
// monotonically non-decreasing within one run; stale percentages reported
// by racing callbacks are dropped rather than surfaced as backward jumps.
type Tracker struct {
	mu      sync.RWMutex
	jobID   string
	phase   Phase
	percent float64
	detail  string
	err     string
}

// NewTracker creates a Tracker in the acquiring phase
func NewTracker(jobID string) *Tracker {
	return &Tracker{
		jobID: jobID,
		phase: PhaseAcquiring,
	}
}

// Transition validates and applies a phase transition
func (t *Tracker) Transition(next Phase) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase == next {
		return nil
	}
	if !isValidTransition(t.phase, next) {
		return fmt.Errorf("invalid transition: %s -> %s", t.phase, next)
	}

	t.phase = next
	return nil
}

// SetProgress records a progress update, ignoring backward values
func (t *Tracker) SetProgress(percent float64, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if percent >= t.percent {
		t.percent = percent
	}
	if detail != "" {
		t.detail = detail
	}
}

// Fail moves the job to the failed phase with a message
func (t *Tracker) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.phase = PhaseFailed
	t.err = msg
}

// Cancel moves the job to the cancelled terminal phase
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.phase.IsTerminal() {
		t.phase = PhaseCancelled
	}
}

// Status returns a snapshot of the current job state
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Status{
		JobID:    t.jobID,
		Phase:    t.phase,
		Percent:  t.percent,
		Detail:   t.detail,
		Err:      t.err,
		Finished: t.phase.IsTerminal(),
	}
}

// isValidTransition enforces the allowed job state machine edges.
// Failure is reachable from acquiring, extracting, and transcribing
// (chunking failures surface during the transcribing phase); cancellation
// is reachable from any non-terminal phase.
func isValidTransition(from, to Phase) bool {
	if to == PhaseCancelled {
		return !from.IsTerminal()
	}

	switch from {
	case PhaseAcquiring:
		return to == PhaseExtracting || to == PhaseFailed
	case PhaseExtracting:
		return to == PhaseTranscribing || to == PhaseFailed
	case PhaseTranscribing:
		return to == PhaseWriting || to == PhaseFailed
	case PhaseWriting:
		return to == PhaseDone
	default:
		return false
	}
}
