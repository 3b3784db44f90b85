package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"toolsite/backend/internal/config"
	"toolsite/backend/internal/filestore"
	"toolsite/backend/internal/session"
)

var (
	runPhases int

	configureWork  int
	configureShort int
	configureLong  int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start a work phase and show the countdown",
		RunE:  runRun,
	}
	runCmd.Flags().IntVar(&runPhases, "phases", 0, "stop after this many phases (0 runs until interrupted)")
	rootCmd.AddCommand(runCmd)

	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "List completed work sessions per day",
		RunE:  runRecords,
	}
	rootCmd.AddCommand(recordsCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every completed work session",
		RunE:  runClear,
	}
	rootCmd.AddCommand(clearCmd)

	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Show or change phase durations in minutes",
		RunE:  runConfigure,
	}
	configureCmd.Flags().IntVar(&configureWork, "work", 0, "work phase minutes")
	configureCmd.Flags().IntVar(&configureShort, "short", 0, "short break minutes")
	configureCmd.Flags().IntVar(&configureLong, "long", 0, "long break minutes")
	rootCmd.AddCommand(configureCmd)
}

func openEngine() (*session.Engine, error) {
	path := statePath
	if path == "" {
		var err error
		if path, err = filestore.DefaultPath("focus"); err != nil {
			return nil, err
		}
	}
	store, err := filestore.Open(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Pomodoro.EngineOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return session.NewEngine(store, opts)
}

func runRun(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates, cancel := engine.Subscribe(4)
	defer cancel()
	if err := engine.Start(); err != nil {
		return err
	}
	return render(ctx, cmd.OutOrStdout(), updates, runPhases)
}

// render redraws the countdown line until ctx ends, updates close, or limit
// phases have finished.
func render(ctx context.Context, out io.Writer, updates <-chan session.Snapshot, limit int) error {
	var last session.Snapshot
	finished := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			if last.Phase != "" && snap.Phase != last.Phase {
				fmt.Fprintf(out, "\r%-12s done\a\n", last.Phase)
				finished++
				if limit > 0 && finished >= limit {
					return nil
				}
			}
			fmt.Fprintf(out, "\r%-12s %s  cycle %d/%d  today %d ", snap.Phase, snap.Display, snap.Cycle, snap.LongBreakInterval, snap.Today)
			if snap.PersistError != "" {
				fmt.Fprintf(out, " (not saved: %s)", snap.PersistError)
			}
			last = snap
		}
	}
}

func runRecords(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cmd.OutOrStdout()
	records := engine.Records()
	if len(records) == 0 {
		fmt.Fprintln(out, "no completed work sessions yet")
		return nil
	}
	total := 0
	for _, day := range records {
		fmt.Fprintf(out, "%s  %d\n", day.Date, day.Count)
		total += day.Count
	}
	fmt.Fprintf(out, "total       %d\n", total)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.ClearRecords(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "records cleared")
	return nil
}

func runConfigure(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	settings := engine.Settings()
	flags := cmd.Flags()
	if flags.Changed("work") {
		settings.WorkMinutes = configureWork
	}
	if flags.Changed("short") {
		settings.ShortBreakMinutes = configureShort
	}
	if flags.Changed("long") {
		settings.LongBreakMinutes = configureLong
	}
	if settings != engine.Settings() {
		if err := engine.Configure(settings); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "work %d min, short break %d min, long break %d min\n",
		settings.WorkMinutes, settings.ShortBreakMinutes, settings.LongBreakMinutes)
	return nil
}
