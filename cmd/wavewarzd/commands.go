package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/api"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/config"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/cron"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/stats"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

const shutdownTimeout = 15 * time.Second

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(versionCmd())
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run scheduled syncs and serve the query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homeDir(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(home)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.connectSources(ctx); err != nil {
				return err
			}
			if n, err := a.battles.CountBattles(ctx); err == nil {
				a.metrics.SetCachedBattles(n)
			}

			sweeper := cron.NewStaleRunSweeper(cron.SweeperConfig{
				Runs:          a.runs,
				Timeout:       a.cfg.StaleRunTimeout(),
				CheckInterval: a.cfg.StaleSweepInterval(),
				Metrics:       a.metrics,
				Logger:        a.log,
			})
			sweeper.Start(ctx)

			job := cron.NewSyncJob(cachedCountSyncer{a}, a.cfg.SyncInterval(), a.log)
			if err := job.Start(ctx); err != nil {
				return err
			}
			defer job.Stop()

			server := api.NewServer(api.Deps{
				Syncer:       cachedCountSyncer{a},
				MaxSyncLimit: a.cfg.MaxSyncLimit,
				Stats:        a.engine,
				Battles:      a.battles,
				Runs:         a.runs,
				Metrics:      a.metrics,
			}, a.log, a.cfg.QueryServerPort)
			if err := server.Start(); err != nil {
				return err
			}

			a.log.Info().
				Int("port", a.cfg.QueryServerPort).
				Dur("sync_interval", a.cfg.SyncInterval()).
				Msg("wavewarzd started")

			<-ctx.Done()
			a.log.Info().Msg("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Stop(shutdownCtx)
		},
	}
}

// cachedCountSyncer refreshes the cached battle gauge after every run.
type cachedCountSyncer struct {
	a *app
}

func (c cachedCountSyncer) TriggerSync(ctx context.Context, opts syncer.Options) (syncer.Result, error) {
	res, err := c.a.syncer.TriggerSync(ctx, opts)
	c.refresh(ctx, err)
	return res, err
}

func (c cachedCountSyncer) TriggerIncrementalSync(ctx context.Context) (syncer.Result, error) {
	res, err := c.a.syncer.TriggerIncrementalSync(ctx)
	c.refresh(ctx, err)
	return res, err
}

func (c cachedCountSyncer) refresh(ctx context.Context, err error) {
	if err != nil {
		return
	}
	if n, err := c.a.battles.CountBattles(ctx); err == nil {
		c.a.metrics.SetCachedBattles(n)
	}
}

func syncCmd() *cobra.Command {
	var (
		full  bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync now and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homeDir(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(home)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := a.connectSources(ctx); err != nil {
				return err
			}

			var res syncer.Result
			if full || limit > 0 {
				res, err = a.syncer.TriggerSync(ctx, syncer.Options{Limit: limit, SyncType: store.SyncTypeManual})
			} else {
				res, err = a.syncer.TriggerIncrementalSync(ctx)
			}
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("sync failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "ignore the incremental cursor and fetch the newest battles")
	cmd.Flags().IntVar(&limit, "limit", 0, "catalog battles to fetch (implies --full)")
	return cmd
}

func statsCmd() *cobra.Command {
	var includeTest bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print platform stats from the battle cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homeDir(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(home)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.engine.Stats(cmd.Context(), includeTest)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&includeTest, "include-test", false, "include test battles in the totals")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	var (
		limit  int
		sortBy string
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the artist leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homeDir(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(home)
			if err != nil {
				return err
			}
			defer a.Close()

			board, err := a.engine.Leaderboard(cmd.Context(), stats.ClampLeaderboardLimit(limit), stats.ParseSortKey(sortBy))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), board)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", stats.DefaultLeaderboardLimit, "number of artists (max 50)")
	cmd.Flags().StringVar(&sortBy, "sort-by", string(stats.SortByEarnings), "earnings, wins or battles")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homeDir(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(home)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.runs.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			views := make([]api.SyncRunView, 0, len(runs))
			for _, r := range runs {
				views = append(views, api.NewSyncRunView(r))
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the resolved configuration to <home>/config",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := homeDir(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			if err := config.Save(cfg, home); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote config to %s\n", home)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print wavewarzd version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Name:    %s\n", "wavewarzd")
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:  %s\n", Commit)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
