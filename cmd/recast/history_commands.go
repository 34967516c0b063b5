package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"recast/internal/api"
	"recast/internal/history"
)

// historyQueryTimeout bounds the attempt to read history through a running
// daemon before falling back to the store.
const historyQueryTimeout = 2 * time.Second

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect finished conversions",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryDeleteCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadHistoryEntries(cmd, ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "History is empty")
				return nil
			}
			rows := make([]table.Row, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, table.Row{
					shortID(entry.ID),
					entry.SourceName,
					strings.ToUpper(entry.OutputFormat),
					formatStatusLabel(entry.Status),
					formatBytesCell(entry.OutputSizeBytes),
					formatTimestamp(entry.CompletedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				table.Row{"ID", "Source", "Format", "Status", "Size", "Completed"}, rows, 5))
			return nil
		},
	}
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := loadHistoryStats(cmd, ctx)
			if err != nil {
				return err
			}
			rows := []table.Row{
				{"Total entries", stats.TotalEntries},
				{"Completed", stats.Completed},
				{"Failed", stats.Failed},
				{"Cancelled", stats.Cancelled},
				{"Output size", formatBytesCell(stats.TotalOutputBytes)},
				{"Conversion time", formatDurationMs(stats.TotalElapsedMs)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(table.Row{"Metric", "Value"}, rows, 2))
			return nil
		},
	}
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistoryStore(func(store *history.Store) error {
				entry, err := resolveHistoryEntry(store, args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(entry.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted history entry %s (%s)\n", shortID(entry.ID), entry.SourceName)
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistoryStore(func(store *history.Store) error {
				entries, err := store.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "History is already empty")
					return nil
				}
				if err := store.Clear(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d history entries\n", len(entries))
				return nil
			})
		},
	}
}

// loadHistoryEntries prefers the daemon API so listing works while the daemon
// holds the history store open, and reads the store directly otherwise.
func loadHistoryEntries(cmd *cobra.Command, ctx *commandContext) ([]api.HistoryEntry, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if bind := strings.TrimSpace(cfg.Paths.APIBind); bind != "" {
		queryCtx, cancel := context.WithTimeout(cmd.Context(), historyQueryTimeout)
		resp, err := api.NewClient(bind).History(queryCtx)
		cancel()
		if err == nil {
			return resp.Entries, nil
		}
	}

	var entries []api.HistoryEntry
	err = ctx.withHistoryStore(func(store *history.Store) error {
		stored, err := store.List()
		if err != nil {
			return err
		}
		entries = api.FromHistoryEntries(stored)
		return nil
	})
	return entries, err
}

func loadHistoryStats(cmd *cobra.Command, ctx *commandContext) (*api.HistoryStatsResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if bind := strings.TrimSpace(cfg.Paths.APIBind); bind != "" {
		queryCtx, cancel := context.WithTimeout(cmd.Context(), historyQueryTimeout)
		resp, err := api.NewClient(bind).HistoryStats(queryCtx)
		cancel()
		if err == nil {
			return resp, nil
		}
	}

	var stats *api.HistoryStatsResponse
	err = ctx.withHistoryStore(func(store *history.Store) error {
		stored, err := store.Stats()
		if err != nil {
			return err
		}
		converted := api.FromHistoryStats(stored)
		stats = &converted
		return nil
	})
	return stats, err
}

// resolveHistoryEntry matches id against stored entries, accepting any
// unambiguous prefix of a full entry id.
func resolveHistoryEntry(store *history.Store, id string) (history.Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return history.Entry{}, errors.New("history entry id required")
	}
	entries, err := store.List()
	if err != nil {
		return history.Entry{}, err
	}

	var matches []history.Entry
	for _, entry := range entries {
		if entry.ID == id {
			return entry, nil
		}
		if strings.HasPrefix(entry.ID, id) {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 0:
		return history.Entry{}, fmt.Errorf("no history entry matches %q", id)
	case 1:
		return matches[0], nil
	default:
		return history.Entry{}, fmt.Errorf("id %q matches %d entries, use more characters", id, len(matches))
	}
}
