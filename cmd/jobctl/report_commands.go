package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/printflow/job-lifecycle/internal/domain"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show WIP, aging and SLA statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := ctx.client().DepartmentStats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, stats)
			}

			out := cmd.OutOrStdout()
			counts := []columnAlignment{alignLeft, alignRight}

			departments := make([]string, 0, len(stats.WIPByProcess))
			for d := range stats.WIPByProcess {
				departments = append(departments, d)
			}
			sort.Strings(departments)
			wip := make([][]string, 0, len(departments))
			for _, d := range departments {
				wip = append(wip, []string{d, strconv.Itoa(stats.WIPByProcess[d])})
			}
			fmt.Fprintln(out, "Work in progress")
			fmt.Fprint(out, renderTable([]string{"Department", "Jobs"}, wip, counts))

			aging := make([][]string, 0, len(domain.AgingBucketLabels))
			for _, label := range domain.AgingBucketLabels {
				aging = append(aging, []string{label + " days", strconv.Itoa(stats.AgingBuckets[label])})
			}
			fmt.Fprintln(out, "Aging")
			fmt.Fprint(out, renderTable([]string{"Age", "Jobs"}, aging, counts))

			sla := make([][]string, 0, len(stats.SLACompliance))
			for _, row := range stats.SLACompliance {
				sla = append(sla, []string{
					row.ProcessType,
					strconv.Itoa(row.Total),
					strconv.Itoa(row.Completed),
					strconv.Itoa(row.OnTime),
					strconv.Itoa(row.Overdue),
				})
			}
			fmt.Fprintln(out, "SLA compliance")
			fmt.Fprint(out, renderTable(
				[]string{"Process", "Total", "Completed", "On time", "Overdue"},
				sla,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newMachineCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "machine <domain>",
		Short: "Print a status domain's transition table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, err := ctx.client().StateMachine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.asJSON {
				return writeJSON(cmd, machine)
			}

			terminal := make(map[string]bool, len(machine.Terminal))
			for _, s := range machine.Terminal {
				terminal[s] = true
			}
			from := make([]string, 0, len(machine.Transitions))
			for s := range machine.Transitions {
				from = append(from, s)
			}
			for _, s := range machine.Terminal {
				if _, ok := machine.Transitions[s]; !ok {
					from = append(from, s)
				}
			}
			sort.Strings(from)

			rows := make([][]string, 0, len(from))
			for _, s := range from {
				label := s
				if s == machine.Initial {
					label += " (initial)"
				}
				next := strings.Join(machine.Transitions[s], ", ")
				if terminal[s] {
					next = "terminal"
				}
				rows = append(rows, []string{label, next})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s state machine\n", machine.Domain)
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"From", "To"}, rows, nil))
			return nil
		},
	}
}
