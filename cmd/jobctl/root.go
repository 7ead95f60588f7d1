package main

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// commandContext carries the persistent flags shared by every subcommand
type commandContext struct {
	server    string
	actorID   string
	actorRole string
	asJSON    bool
}

func (c *commandContext) client() *Client {
	return NewClient(c.server, c.actorID, c.actorRole)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	server := os.Getenv("JOBCTL_SERVER")
	if server == "" {
		server = defaultServer
	}

	rootCmd := &cobra.Command{
		Use:           "jobctl",
		Short:         "Operate the print job lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.server, "server", server, "Lifecycle service base URL (env JOBCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&ctx.actorID, "actor", os.Getenv("JOBCTL_ACTOR"), "Acting user id")
	rootCmd.PersistentFlags().StringVar(&ctx.actorRole, "role", os.Getenv("JOBCTL_ROLE"), "Acting user role")
	rootCmd.PersistentFlags().BoolVar(&ctx.asJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newTransitionCommand(ctx))
	rootCmd.AddCommand(newNextCommand(ctx))
	rootCmd.AddCommand(newStageCommand(ctx))
	rootCmd.AddCommand(newAssignCommand(ctx))
	rootCmd.AddCommand(newReassignCommand(ctx))
	rootCmd.AddCommand(newUnassignCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newMachineCommand(ctx))

	return rootCmd
}
