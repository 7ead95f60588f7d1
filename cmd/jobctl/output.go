package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/printflow/job-lifecycle/internal/application"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func printJob(cmd *cobra.Command, job *application.JobDTO) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s (%s)\n", job.JobCardID, job.ID)
	if job.Title != "" {
		fmt.Fprintf(out, "  Title:      %s\n", job.Title)
	}
	if job.Customer != "" {
		fmt.Fprintf(out, "  Customer:   %s\n", job.Customer)
	}
	fmt.Fprintf(out, "  Status:     %s\n", job.Status)
	fmt.Fprintf(out, "  Priority:   %s\n", job.Priority)
	fmt.Fprintf(out, "  Department: %s\n", dashIfEmpty(job.CurrentDepartment))
	fmt.Fprintf(out, "  Assignee:   %s\n", orDash(job.AssignedToID))
	fmt.Fprintf(out, "  Due:        %s\n", formatTime(job.DueDate))
	if job.Progress != nil {
		fmt.Fprintf(out, "  Progress:   %d%%\n", job.Progress.ProgressPercent)
	}

	if len(job.DomainStatuses) > 0 {
		domains := make([]string, 0, len(job.DomainStatuses))
		for d := range job.DomainStatuses {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		parts := make([]string, 0, len(domains))
		for _, d := range domains {
			parts = append(parts, d+"="+job.DomainStatuses[d])
		}
		fmt.Fprintf(out, "  Domains:    %s\n", strings.Join(parts, ", "))
	}

	if len(job.Stages) == 0 {
		return
	}
	rows := make([][]string, 0, len(job.Stages))
	for _, s := range job.Stages {
		rows = append(rows, []string{s.Department, s.Status, strconv.Itoa(s.Progress) + "%", orDash(s.AssignedTo)})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Department", "Status", "Progress", "Assignee"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func assignmentRows(records []application.AssignmentRecordDTO) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.ActionType,
			orDash(r.PreviousAssignee),
			orDash(r.AssignedTo),
			dashIfEmpty(r.AssignedBy),
			formatTime(r.CreatedAt),
			r.Notes,
		})
	}
	return rows
}

var assignmentHeaders = []string{"ID", "Action", "From", "To", "By", "At", "Notes"}

func printAssignment(cmd *cobra.Command, result *application.AssignmentResultDTO) {
	fmt.Fprint(cmd.OutOrStdout(), renderTable(assignmentHeaders, assignmentRows([]application.AssignmentRecordDTO{result.Record}), nil))
	fmt.Fprintf(cmd.OutOrStdout(), "Current assignee: %s\n", orDash(result.CurrentAssignee))
}
