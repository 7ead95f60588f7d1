package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Department is a production department a job passes through
type Department string

const (
	DepartmentPunch      Department = "punch"
	DepartmentPrepress   Department = "prepress"
	DepartmentDie        Department = "die"
	DepartmentPlate      Department = "plate"
	DepartmentProduction Department = "production"
	DepartmentCutting    Department = "cutting"
	DepartmentPrinting   Department = "printing"
	DepartmentVarnishing Department = "varnishing"
	DepartmentEmbossing  Department = "embossing"
	DepartmentFinishing  Department = "finishing"
	DepartmentPackaging  Department = "packaging"
	DepartmentDelivery   Department = "delivery"
)

// DepartmentSequence is the fixed order stages are laid out in
var DepartmentSequence = []Department{
	DepartmentPunch,
	DepartmentPrepress,
	DepartmentDie,
	DepartmentPlate,
	DepartmentProduction,
	DepartmentCutting,
	DepartmentPrinting,
	DepartmentVarnishing,
	DepartmentEmbossing,
	DepartmentFinishing,
	DepartmentPackaging,
	DepartmentDelivery,
}

var departmentIndex = func() map[Department]int {
	m := make(map[Department]int, len(DepartmentSequence))
	for i, d := range DepartmentSequence {
		m[d] = i
	}
	return m
}()

// IsValid reports whether the department is part of the fixed sequence
func (d Department) IsValid() bool {
	_, ok := departmentIndex[d]
	return ok
}

// Position returns the department's index in the fixed sequence, or -1
func (d Department) Position() int {
	if i, ok := departmentIndex[d]; ok {
		return i
	}
	return -1
}

// StageStatus is the status of a single department stage
type StageStatus string

const (
	StageStatusPending    StageStatus = "PENDING"
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusCompleted  StageStatus = "COMPLETED"
	StageStatusBlocked    StageStatus = "BLOCKED"
	StageStatusSkipped    StageStatus = "SKIPPED"
)

// IsValid reports whether the stage status is known
func (s StageStatus) IsValid() bool {
	switch s {
	case StageStatusPending, StageStatusInProgress, StageStatusCompleted, StageStatusBlocked, StageStatusSkipped:
		return true
	}
	return false
}

// IsDone reports whether the stage counts towards progress
func (s StageStatus) IsDone() bool {
	return s == StageStatusCompleted || s == StageStatusSkipped
}

// Stage is one department-scoped step of a job
type Stage struct {
	Key        string      `bson:"key" json:"key"`
	Department Department  `bson:"department" json:"department"`
	Status     StageStatus `bson:"status" json:"status"`
	Progress   int         `bson:"progress" json:"progress"`
	AssignedTo string      `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	UpdatedAt  time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// Label returns the display label for the stage
func (s Stage) Label() string {
	if s.Department == "" {
		return s.Key
	}
	d := string(s.Department)
	return strings.ToUpper(d[:1]) + d[1:]
}

// NewStage creates a pending stage for the department
func NewStage(department Department) Stage {
	return Stage{
		Key:        string(department),
		Department: department,
		Status:     StageStatusPending,
		UpdatedAt:  time.Now(),
	}
}

// DefaultStages returns the full fixed sequence, all pending
func DefaultStages() []Stage {
	stages := make([]Stage, 0, len(DepartmentSequence))
	for _, d := range DepartmentSequence {
		stages = append(stages, NewStage(d))
	}
	return stages
}

// SortStages orders stages by the fixed department sequence. Unknown
// departments sort last and keep their relative order.
func SortStages(stages []Stage) []Stage {
	out := append([]Stage(nil), stages...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Department.Position(), out[j].Department.Position()
		if pi < 0 {
			return false
		}
		if pj < 0 {
			return true
		}
		return pi < pj
	})
	return out
}

// ValidateStages checks a supplied stage list for unknown or duplicated
// departments and out-of-range progress.
func ValidateStages(stages []Stage) error {
	seen := make(map[Department]bool, len(stages))
	for _, s := range stages {
		if !s.Department.IsValid() {
			return fmt.Errorf("%w: unknown department %q", ErrInvalidStage, s.Department)
		}
		if seen[s.Department] {
			return fmt.Errorf("%w: duplicate department %q", ErrInvalidStage, s.Department)
		}
		seen[s.Department] = true
		if s.Status != "" && !s.Status.IsValid() {
			return fmt.Errorf("%w: unknown status %q for %s", ErrInvalidStage, s.Status, s.Department)
		}
		if s.Progress < 0 || s.Progress > 100 {
			return fmt.Errorf("%w: progress %d out of range for %s", ErrInvalidStage, s.Progress, s.Department)
		}
	}
	return nil
}
