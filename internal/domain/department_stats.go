package domain

import (
	"sort"
	"time"
)

// Aging bucket labels
const (
	AgingBucket0To3   = "0-3"
	AgingBucket4To7   = "4-7"
	AgingBucket8To14  = "8-14"
	AgingBucket15Plus = "15+"
)

// AgingBucketLabels lists the buckets in ascending order
var AgingBucketLabels = []string{AgingBucket0To3, AgingBucket4To7, AgingBucket8To14, AgingBucket15Plus}

// UnroutedDepartment keys WIP for open jobs that have no current department
const UnroutedDepartment = "unrouted"

// UnspecifiedProcess keys SLA rows for jobs with no process type
const UnspecifiedProcess = "unspecified"

// SLACompliance is one row of the SLA report
type SLACompliance struct {
	ProcessType string `json:"processType"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	OnTime      int    `json:"onTime"`
	Overdue     int    `json:"overdue"`
}

// DepartmentStats is the derived cross-job dashboard view
type DepartmentStats struct {
	WIPByProcess  map[string]int  `json:"wipByProcess"`
	AgingBuckets  map[string]int  `json:"agingBuckets"`
	SLACompliance []SLACompliance `json:"slaCompliance"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

// ComputeDepartmentStats runs all three reducers over one snapshot
func ComputeDepartmentStats(jobs []*Job, now time.Time) DepartmentStats {
	return DepartmentStats{
		WIPByProcess:  WIPByProcess(jobs),
		AgingBuckets:  AgingBuckets(jobs, now),
		SLACompliance: ComputeSLACompliance(jobs, now),
		GeneratedAt:   now,
	}
}

// WIPByProcess counts open jobs per current department. Every department of
// the fixed sequence is present, so empty departments report zero.
func WIPByProcess(jobs []*Job) map[string]int {
	wip := make(map[string]int, len(DepartmentSequence)+1)
	for _, d := range DepartmentSequence {
		wip[string(d)] = 0
	}
	for _, j := range jobs {
		if !j.IsOpen() {
			continue
		}
		key := string(j.CurrentDepartment)
		if key == "" {
			key = UnroutedDepartment
		}
		wip[key]++
	}
	return wip
}

// AgingBuckets classifies jobs that are not COMPLETED by whole days open
func AgingBuckets(jobs []*Job, now time.Time) map[string]int {
	buckets := make(map[string]int, len(AgingBucketLabels))
	for _, label := range AgingBucketLabels {
		buckets[label] = 0
	}
	for _, j := range jobs {
		if j.IsCompleted() {
			continue
		}
		buckets[agingBucket(now.Sub(j.CreatedAt))]++
	}
	return buckets
}

func agingBucket(age time.Duration) string {
	days := int(age / (24 * time.Hour))
	switch {
	case days <= 3:
		return AgingBucket0To3
	case days <= 7:
		return AgingBucket4To7
	case days <= 14:
		return AgingBucket8To14
	default:
		return AgingBucket15Plus
	}
}

// ComputeSLACompliance groups jobs by process type. Jobs without a process
// type fall back to their current department.
func ComputeSLACompliance(jobs []*Job, now time.Time) []SLACompliance {
	rows := make(map[string]*SLACompliance)
	for _, j := range jobs {
		key := j.ProcessType
		if key == "" {
			key = string(j.CurrentDepartment)
		}
		if key == "" {
			key = UnspecifiedProcess
		}
		row, ok := rows[key]
		if !ok {
			row = &SLACompliance{ProcessType: key}
			rows[key] = row
		}

		row.Total++
		switch {
		case j.IsCompleted():
			row.Completed++
			if j.DueDate.IsZero() || (j.CompletedAt != nil && !j.CompletedAt.After(j.DueDate)) {
				row.OnTime++
			}
		case !j.DueDate.IsZero() && j.DueDate.Before(now):
			row.Overdue++
		}
	}

	out := make([]SLACompliance, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ProcessType < out[k].ProcessType })
	return out
}
