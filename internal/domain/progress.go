package domain

import "math"

// StageProgress is one stage as seen by dashboards
type StageProgress struct {
	Key        string      `json:"key"`
	Label      string      `json:"label"`
	Department Department  `json:"department"`
	Status     StageStatus `json:"status"`
	// Ratio is the stage's completion in [0,1]; done stages count as 1
	Ratio float64 `json:"ratio"`
}

// WorkflowProgress is the derived summary of a job's stages. It is never
// stored.
type WorkflowProgress struct {
	Stages          []StageProgress `json:"stages"`
	CurrentStage    Department      `json:"currentStage"`
	ProgressPercent int             `json:"progressPercent"`
}

// ProjectProgress maps a stage list to its progress summary. The result
// depends only on the input, so equal inputs give equal output.
//
// progressPercent counts COMPLETED and SKIPPED stages against the stages
// present. The current stage is the first IN_PROGRESS stage in department
// order, else the first PENDING one, else the last stage.
func ProjectProgress(stages []Stage) WorkflowProgress {
	ordered := SortStages(stages)
	out := WorkflowProgress{Stages: make([]StageProgress, 0, len(ordered))}
	if len(ordered) == 0 {
		return out
	}

	done := 0
	firstInProgress, firstPending := -1, -1
	for i, s := range ordered {
		ratio := float64(s.Progress) / 100
		if s.Status.IsDone() {
			done++
			ratio = 1
		}
		switch s.Status {
		case StageStatusInProgress:
			if firstInProgress < 0 {
				firstInProgress = i
			}
		case StageStatusPending:
			if firstPending < 0 {
				firstPending = i
			}
		}
		out.Stages = append(out.Stages, StageProgress{
			Key:        s.Key,
			Label:      s.Label(),
			Department: s.Department,
			Status:     s.Status,
			Ratio:      ratio,
		})
	}

	out.ProgressPercent = int(math.Round(100 * float64(done) / float64(len(ordered))))

	switch {
	case firstInProgress >= 0:
		out.CurrentStage = ordered[firstInProgress].Department
	case firstPending >= 0:
		out.CurrentStage = ordered[firstPending].Department
	default:
		out.CurrentStage = ordered[len(ordered)-1].Department
	}

	return out
}
