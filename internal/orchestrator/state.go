package orchestrator

import "github.com/AaronLay10/EspressoLine/internal/pipeline"

// StageStatus is a point-in-time view of one stage worker.
type StageStatus struct {
	Name      string `json:"name"`
	Subsystem string `json:"subsystem"`
	State     string `json:"state"`
	Processed int64  `json:"processed"`
	Dropped   int64  `json:"dropped"`
}

// Summary is the outcome of one batch run.
type Summary struct {
	RunID    string `json:"run_id"`
	Admitted []int  `json:"admitted"`
	Rejected []int  `json:"rejected"`
}

// IsDrained reports whether every stage has drained.
func IsDrained(stages []StageStatus) bool {
	for _, s := range stages {
		if s.State != pipeline.Drained.String() {
			return false
		}
	}
	return true
}
