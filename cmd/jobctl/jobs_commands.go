package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List, inspect and create jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCreateCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var opts JobListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := ctx.client().ListJobs(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, page)
			}
			if len(page.Data) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(page.Data))
			for _, job := range page.Data {
				rows = append(rows, []string{
					job.JobCardID,
					job.Status,
					job.Priority,
					dashIfEmpty(job.CurrentDepartment),
					orDash(job.AssignedToID),
					job.DueDate.UTC().Format("2006-01-02"),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Job Card", "Status", "Priority", "Department", "Assignee", "Due"},
				rows, nil,
			))
			fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d jobs)\n", page.Page, page.TotalPages, page.TotalItems)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by job status")
	cmd.Flags().StringVar(&opts.Department, "department", "", "Filter by current department")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&opts.AssignedTo, "assigned-to", "", "Filter by current assignee")
	cmd.Flags().Int64Var(&opts.Page, "page", 0, "Page number")
	cmd.Flags().Int64Var(&opts.PageSize, "page-size", 0, "Jobs per page")

	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its stages and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, job)
			}
			printJob(cmd, job)
			return nil
		},
	}
}

func newJobsCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		in      CreateJobInput
		due     string
		stages  []string
		dueDays int
	)

	cmd := &cobra.Command{
		Use:   "create <job-card-id>",
		Short: "Open a new job card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.JobCardID = args[0]

			switch {
			case due != "":
				parsed, err := parseDueDate(due)
				if err != nil {
					return err
				}
				in.DueDate = parsed
			case dueDays > 0:
				in.DueDate = time.Now().UTC().AddDate(0, 0, dueDays)
			default:
				return fmt.Errorf("one of --due or --due-in-days is required")
			}

			in.Stages = nil
			for _, s := range stages {
				for _, dept := range strings.Split(s, ",") {
					if dept = strings.TrimSpace(dept); dept != "" {
						in.Stages = append(in.Stages, StageInput{Department: dept})
					}
				}
			}

			job, err := ctx.client().CreateJob(cmd.Context(), in)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, job)
			}
			printJob(cmd, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Job title")
	cmd.Flags().StringVar(&in.Customer, "customer", "", "Customer name")
	cmd.Flags().IntVar(&in.Quantity, "quantity", 1, "Ordered quantity")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "Priority (LOW, MEDIUM, HIGH, CRITICAL)")
	cmd.Flags().StringVar(&in.ProcessType, "process-type", "", "Process type used for SLA reporting")
	cmd.Flags().StringVar(&due, "due", "", "Due date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&dueDays, "due-in-days", 0, "Due date as days from now")
	cmd.Flags().StringSliceVar(&stages, "stage", nil, "Department stage to route through (repeatable)")

	return cmd
}

func parseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: expected RFC3339 or YYYY-MM-DD", raw)
	}
	return t.UTC(), nil
}

func newTransitionCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "transition <job-id> <domain> <status>",
		Short: "Move a job's status in one domain",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Transition(cmd.Context(), args[0], args[1], args[2], notes)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s status is now %s\n", job.JobCardID, args[1], job.DomainStatuses[args[1]])
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Transition notes")
	return cmd
}

func newNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next <job-id> <domain>",
		Short: "List the statuses a job may move to next",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := ctx.client().NextStatuses(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, next)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current %s status: %s\n", next.Domain, next.CurrentStatus)
			if next.Terminal || len(next.NextStatuses) == 0 {
				fmt.Fprintln(out, "No further transitions")
				return nil
			}
			fmt.Fprintf(out, "Next: %s\n", strings.Join(next.NextStatuses, ", "))
			return nil
		},
	}
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	var (
		progress   int
		assignedTo string
	)

	cmd := &cobra.Command{
		Use:   "stage <job-id> <department> <status>",
		Short: "Update one department stage of a job",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := StageUpdateInput{Status: args[2]}
			if cmd.Flags().Changed("progress") {
				in.Progress = &progress
			}
			if cmd.Flags().Changed("assign") {
				in.AssignedTo = &assignedTo
			}

			job, err := ctx.client().UpdateStage(cmd.Context(), args[0], args[1], in)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, job)
			}
			percent := "-"
			if job.Progress != nil {
				percent = strconv.Itoa(job.Progress.ProgressPercent) + "%"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is %s; workflow %s complete\n", job.JobCardID, args[1], args[2], percent)
			return nil
		},
	}

	cmd.Flags().IntVar(&progress, "progress", 0, "Stage progress 0-100")
	cmd.Flags().StringVar(&assignedTo, "assign", "", "Stage assignee")
	return cmd
}
