package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssignCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "assign <job-id> <user>",
		Short: "Assign an unheld job to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.client().Assign(cmd.Context(), args[0], args[1], notes)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, result)
			}
			printAssignment(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Assignment notes")
	return cmd
}

func newReassignCommand(ctx *commandContext) *cobra.Command {
	var (
		notes    string
		previous string
	)

	cmd := &cobra.Command{
		Use:   "reassign <job-id> <user>",
		Short: "Move a job from its current holder to another user",
		Long: "Move a job from its current holder to another user. --from names the holder " +
			"you expect; the service rejects the change if someone else holds the job.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if previous == "" {
				job, err := ctx.client().GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job.AssignedToID == nil {
					return fmt.Errorf("job %s is not assigned; use assign instead", args[0])
				}
				previous = *job.AssignedToID
			}

			result, err := ctx.client().Reassign(cmd.Context(), args[0], args[1], previous, notes)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, result)
			}
			printAssignment(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&previous, "from", "", "Holder you expect the job to have (defaults to the current holder)")
	cmd.Flags().StringVar(&notes, "notes", "", "Reassignment notes")
	return cmd
}

func newUnassignCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "unassign <job-id>",
		Short: "Release a job from its holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.client().Unassign(cmd.Context(), args[0], notes)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, result)
			}
			printAssignment(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Unassignment notes")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var descending bool

	cmd := &cobra.Command{
		Use:   "history <job-id>",
		Short: "Show a job's assignment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ctx.client().History(cmd.Context(), args[0], descending)
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assignment history")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(assignmentHeaders, assignmentRows(records), []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&descending, "desc", false, "Newest first")
	return cmd
}
