package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/aicmd-go/internal/app"
)

// TimestampFormat is used for user-facing entry timestamps.
const TimestampFormat = "2006-01-02 15:04:05"

// NewCacheCommand creates the cache command with all subcommands.
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or maintain the command cache",
	}

	cacheCmd.AddCommand(
		newCacheStatsCommand(container),
		newCacheListCommand(container),
		newCacheCleanupCommand(container),
		newCacheRecalculateCommand(container),
		newCacheBackupCommand(container),
		newCacheResetCommand(container),
		newCacheClearCommand(container),
		newCacheDeleteCommand(container),
		newCacheHistoryCommand(container),
	)

	return cacheCmd
}

func newCacheStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size, health, and database location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCacheStats(cmd, container)
		},
	}
}

func newCacheListCommand(container *app.Container) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCacheEntries(cmd, container, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}

func newCacheCleanupCommand(container *app.Container) *cobra.Command {
	var (
		maxAgeDays int
		sizeLimit  int
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stale entries and enforce the size limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAgeDays <= 0 {
				maxAgeDays = container.Config.Cache.MaxAgeDays
			}
			if sizeLimit <= 0 {
				sizeLimit = container.Config.Cache.SizeLimit
			}
			removed, err := container.CacheManager.Cleanup(cmd.Context(), maxAgeDays, sizeLimit)
			if err != nil {
				return fmt.Errorf("cache cleanup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxAgeDays, "max-age", 0, "Override max entry age in days")
	cmd.Flags().IntVar(&sizeLimit, "max-entries", 0, "Override max entry count")
	return cmd
}

func newCacheRecalculateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "Recompute every stored confidence score from its feedback counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := container.ConfidenceModel.RecalculateAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("recalculate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recalculated %d entries.\n", updated)
			return nil
		},
	}
}

func newCacheBackupCommand(container *app.Container) *cobra.Command {
	var dst string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the cache database to a timestamped backup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := container.Store.Backup(dst)
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dst, "output", "o", "", "Backup file path (default: alongside the database)")
	return cmd
}

func newCacheResetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Re-enable caching after it was disabled by repeated failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			container.Controller.Reset()
			fmt.Fprintln(cmd.OutOrStdout(), "Cache re-enabled.")
			return nil
		},
	}
}

func newCacheClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached entries and feedback history",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := container.CacheManager.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries.\n", removed)
			return nil
		},
	}
}

func newCacheDeleteCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [hash]",
		Short: "Delete one cached entry by its query hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.CacheManager.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("cache delete: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
}

func newCacheHistoryCommand(container *app.Container) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [hash]",
		Short: "Show recorded confirm/reject events, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := ""
			if len(args) == 1 {
				hash = args[0]
			}
			events, err := container.CacheManager.FeedbackEvents(cmd.Context(), hash, limit)
			if err != nil {
				return fmt.Errorf("cache history: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No feedback recorded.")
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s | %s\n",
					e.Timestamp.Format(TimestampFormat), e.QueryHash, e.Action, e.Command)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events to show")
	return cmd
}

func showCacheStats(cmd *cobra.Command, container *app.Container) error {
	out := cmd.OutOrStdout()

	stats, err := container.Store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}

	fmt.Fprintf(out, "Database: %s\n", stats.Path)
	fmt.Fprintf(out, "Entries: %d\n", stats.CacheEntries)
	fmt.Fprintf(out, "Feedback events: %d\n", stats.FeedbackEvents)
	fmt.Fprintf(out, "File size: %d bytes\n", stats.FileSizeBytes)

	health := container.Controller.Health()
	if health.Enabled {
		fmt.Fprintln(out, "Status: enabled")
	} else {
		fmt.Fprintf(out, "Status: disabled (errors: %d", health.ErrorCount)
		if health.LastError != "" {
			fmt.Fprintf(out, ", last: %s", health.LastError)
		}
		fmt.Fprintln(out, ")")
	}
	return nil
}

func listCacheEntries(cmd *cobra.Command, container *app.Container, limit int) error {
	entries, err := container.CacheManager.Entries(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("cache list: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cached entries.")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		eff := container.ConfidenceModel.Effective(e.ConfidenceScore, e.LastUsed)
		fmt.Fprintf(out, "%s | %.2f (eff %.2f) | +%d/-%d | %s | %s\n",
			e.QueryHash, e.ConfidenceScore, eff,
			e.ConfirmationCount, e.RejectionCount,
			e.LastUsed.Format(TimestampFormat), e.Query)
	}
	return nil
}
