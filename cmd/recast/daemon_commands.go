package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recast/internal/api"
	"recast/internal/config"
	"recast/internal/daemonctl"
	"recast/internal/preflight"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 5 * time.Second
)

// newDaemonCommands returns the daemon lifecycle commands: start, stop,
// restart, status, pause, and resume.
func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the recast daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			exe, err := daemonctl.ResolveDaemonBinary()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), cfg, exe, ctx.launchOptions(), daemonStartTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.State == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the recast daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), daemonStopGrace)
			out := cmd.OutOrStdout()
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the recast daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			exe, err := daemonctl.ResolveDaemonBinary()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(cmd.Context(), cfg, exe, ctx.launchOptions(), daemonStopGrace, daemonStartTimeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon restarted (pid %d)\n", result.PID)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			renderStatusSnapshot(cmd.OutOrStdout(), ctx.configValue(), snapshot)
			return nil
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause queue processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if _, err := client.Pause(cmd.Context()); err != nil {
				return wrapDaemonError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Queue processing paused")
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume queue processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if _, err := client.Resume(cmd.Context()); err != nil {
				return wrapDaemonError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Queue processing resumed")
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd, pauseCmd, resumeCmd}
}

func renderStatusSnapshot(out io.Writer, cfg *config.Config, snapshot *daemonctl.StatusSnapshot) {
	colorize := shouldColorize(out)

	printSection(out, "Daemon", colorize)
	if snapshot.DaemonUp {
		fmt.Fprintln(out, statusLine("State", statusOK, fmt.Sprintf("running (pid %d)", snapshot.Daemon.PID), colorize))
		workflow := snapshot.Daemon.Workflow
		switch {
		case workflow.Paused:
			fmt.Fprintln(out, statusLine("Workflow", statusWarn, "paused", colorize))
		case workflow.Running:
			fmt.Fprintln(out, statusLine("Workflow", statusOK, "processing", colorize))
		default:
			fmt.Fprintln(out, statusLine("Workflow", statusInfo, "idle", colorize))
		}
		if workflow.LastError != "" {
			fmt.Fprintln(out, statusLine("Last error", statusWarn, workflow.LastError, colorize))
		}
		fmt.Fprintln(out, statusLine("API", statusOK, cfg.Paths.APIBind, colorize))
	} else {
		fmt.Fprintln(out, statusLine("State", statusWarn, "not running (start it with `recast start`)", colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Checks", colorize)
	for _, check := range snapshot.Checks {
		fmt.Fprintln(out, statusLine(check.Name, passKind(check.Passed), checkDetail(check), colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Dependencies", colorize)
	available, missingRequired := daemonctl.SummarizeDependencies(snapshot.Dependencies)
	summaryKind := statusOK
	if missingRequired > 0 {
		summaryKind = statusError
	}
	fmt.Fprintln(out, statusLine("Summary", summaryKind,
		fmt.Sprintf("%d of %d available", available, len(snapshot.Dependencies)), colorize))
	for _, dep := range snapshot.Dependencies {
		fmt.Fprintln(out, statusLine(dep.Name, dependencyKind(dep), dependencyDetail(dep), colorize))
	}
	fmt.Fprintln(out)

	printSection(out, "Queue", colorize)
	rows := queueStatsRows(snapshot.QueueStats)
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprintln(out, renderTable(table.Row{"Status", "Count"}, rows, 2))
}

func checkDetail(check preflight.Result) string {
	if check.Passed || check.Remedy == "" {
		return check.Detail
	}
	return check.Detail + " (" + check.Remedy + ")"
}

func dependencyKind(dep api.DependencyStatus) statusKind {
	if dep.Available {
		return statusOK
	}
	if dep.Optional {
		return statusWarn
	}
	return statusError
}

func dependencyDetail(dep api.DependencyStatus) string {
	if dep.Available {
		if dep.Version != "" {
			return fmt.Sprintf("ready (%s)", dep.Version)
		}
		return "ready"
	}
	detail := strings.TrimSpace(dep.Detail)
	if detail == "" {
		detail = "not found"
	}
	if dep.Optional {
		detail += " (optional)"
	}
	return detail
}
