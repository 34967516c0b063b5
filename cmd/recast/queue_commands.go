package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recast/internal/queue"
	"recast/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the background conversion queue",
	}
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	flags := &convertFlags{}

	cmd := &cobra.Command{
		Use:   "add <input> [input...]",
		Short: "Queue files for background conversion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			settings, err := flags.settings(cmd, cfg)
			if err != nil {
				return err
			}
			jobs, err := buildConvertJobs(cfg, args, settings, flags.outputDir)
			if err != nil {
				return err
			}
			return ctx.withQueueAccess(cmd, func(session queueaccess.Session) error {
				out := cmd.OutOrStdout()
				for _, job := range jobs {
					queued, err := session.Access.Enqueue(cmd.Context(), job.SourcePath, job.OutputPath, job.Settings)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued job %d: %s -> %s\n", queued.ID, queued.SourceName, job.OutputPath)
				}
				if !session.ViaDaemon {
					fmt.Fprintln(out, "Daemon is not running; start it with `recast start` to process the queue")
				}
				return nil
			})
		},
	}

	addConvertFlags(cmd, flags)
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(cmd, func(session queueaccess.Session) error {
				jobs, err := session.Access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([]table.Row, 0, len(jobs))
				for _, job := range jobs {
					label := formatStatusLabel(job.Status)
					if job.CancelRequested && job.Status == string(queue.StatusRunning) {
						label += " (cancelling)"
					}
					rows = append(rows, table.Row{
						job.ID,
						job.SourceName,
						label,
						formatPercent(job.Progress.Percent),
						formatTimestamp(job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					table.Row{"ID", "Source", "Status", "Progress", "Created"}, rows, 1, 4))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueAccess(cmd, func(session queueaccess.Session) error {
				stats, err := session.Access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := queueStatsRows(stats)
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(table.Row{"Status", "Count"}, rows, 2))
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueueAccess(cmd, func(session queueaccess.Session) error {
				accepted, err := session.Access.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !accepted {
					fmt.Fprintf(out, "Job %d not found or already finished\n", id)
					return nil
				}
				job, err := session.Access.Describe(cmd.Context(), id)
				if err == nil && job != nil && job.Status == string(queue.StatusCancelled) {
					fmt.Fprintf(out, "Job %d cancelled\n", id)
					return nil
				}
				fmt.Fprintf(out, "Job %d cancellation requested; it will stop shortly\n", id)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a job from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withQueueAccess(cmd, func(session queueaccess.Session) error {
				job, err := session.Access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if job == nil {
					fmt.Fprintf(out, "Job %d not found\n", id)
					return nil
				}
				if job.Status == string(queue.StatusRunning) {
					return fmt.Errorf("job %d is running; cancel it before removing", id)
				}
				if _, err := session.Access.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Job %d removed\n", id)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed jobs to pending",
		Long: "Return failed jobs to pending so the daemon picks them up again.\n" +
			"Without arguments every failed job is reset.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withQueueStore(func(store *queue.Store) error {
				updated, err := store.Retry(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if updated == 0 {
					fmt.Fprintln(out, "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(out, "Reset %d jobs to pending\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var finishedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueueStore(func(store *queue.Store) error {
				var removed int64
				var err error
				if finishedOnly {
					removed, err = store.ClearFinished(cmd.Context())
				} else {
					removed, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				label := "jobs"
				if finishedOnly {
					label = "finished jobs"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&finishedOnly, "finished", false, "Remove only completed, failed, and cancelled jobs")
	return cmd
}
