package pipeline

import "fmt"

// Stage outcomes form a three-way result: a stage either succeeded, was
// skipped or failed in a survivable way (the job continues with reduced
// output), or failed fatally (the job stops). The distinction is what lets a
// narration outage still produce a silent combined video.

type StageStatus string

const (
	StageOK       StageStatus = "ok"
	StageDegraded StageStatus = "degraded"
	StageFatal    StageStatus = "fatal"
)

// StageResult records what happened to one pipeline stage.
type StageResult struct {
	Stage  string
	Status StageStatus
	Err    error
}

func (r StageResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Stage, r.Status, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Stage, r.Status)
}

// JobOutcome accumulates stage results over a run. Results are append-only:
// a recorded degradation is never cleared by a later success.
type JobOutcome struct {
	stages []StageResult
}

func (o *JobOutcome) record(stage string, status StageStatus, err error) {
	o.stages = append(o.stages, StageResult{Stage: stage, Status: status, Err: err})
}

func (o *JobOutcome) OK(stage string) {
	o.record(stage, StageOK, nil)
}

func (o *JobOutcome) Degrade(stage string, err error) {
	o.record(stage, StageDegraded, err)
}

func (o *JobOutcome) Fatal(stage string, err error) {
	o.record(stage, StageFatal, err)
}

// Degraded reports whether any stage was recorded as degraded.
func (o *JobOutcome) Degraded() bool {
	for _, s := range o.stages {
		if s.Status == StageDegraded {
			return true
		}
	}
	return false
}

// Failed reports whether a fatal stage ended the job.
func (o *JobOutcome) Failed() bool {
	for _, s := range o.stages {
		if s.Status == StageFatal {
			return true
		}
	}
	return false
}

// Stages returns a copy of the recorded results in order.
func (o *JobOutcome) Stages() []StageResult {
	out := make([]StageResult, len(o.stages))
	copy(out, o.stages)
	return out
}

// Degradations lists the survivable failures for logging and job history.
func (o *JobOutcome) Degradations() []StageResult {
	var out []StageResult
	for _, s := range o.stages {
		if s.Status == StageDegraded {
			out = append(out, s)
		}
	}
	return out
}
