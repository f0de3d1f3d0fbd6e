package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keytally/internal/activity"
	"github.com/verte-zerg/keytally/internal/config"
	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/statusui"
	"github.com/verte-zerg/keytally/internal/store"
	"github.com/verte-zerg/keytally/internal/watch"
)

const (
	defaultIdleTimeout      = 5.0
	defaultSnapshotInterval = 60
)

var (
	watchIdleTimeout      float64
	watchExtensions       []string
	watchSnapshotInterval int
	watchPlain            bool
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Track typing activity from file edits",
		RunE:  runWatchCmd,
	}
	cmd.Flags().Float64Var(&watchIdleTimeout, "idle-timeout", defaultIdleTimeout, "seconds without activity before pausing")
	cmd.Flags().StringSliceVar(&watchExtensions, "ext", nil, "file extensions to track (default: common source and text files)")
	cmd.Flags().IntVar(&watchSnapshotInterval, "snapshot-interval", defaultSnapshotInterval, "seconds between stored snapshots (0 disables)")
	cmd.Flags().BoolVar(&watchPlain, "plain", false, "print status lines instead of the TUI")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFloatConfig(cmd, "idle-timeout", &watchIdleTimeout, fileCfg.Tracker.IdleTimeoutSeconds)
	applyStringSliceConfig(cmd, "ext", &watchExtensions, fileCfg.Tracker.Extensions)
	applyIntConfig(cmd, "snapshot-interval", &watchSnapshotInterval, fileCfg.Tracker.SnapshotIntervalSeconds)

	if watchIdleTimeout <= 0 {
		return fmt.Errorf("--idle-timeout must be > 0")
	}
	if watchSnapshotInterval < 0 {
		return fmt.Errorf("--snapshot-interval must be >= 0")
	}
	dirs := args
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	logs := setupLogger(fileCfg.Log)
	defer closeLogger(logs)
	trackerID := uuid.NewString()
	logger := logs.Logger.With("tracker_id", trackerID)

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	tracker := activity.New(time.Duration(watchIdleTimeout * float64(time.Second)))
	tracker.Start()

	watcher, err := watch.New(dirs, watchExtensions, tracker, logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			logErrf("failed to close watcher: %v\n", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil {
			logger.Error("watcher stopped", "error", err)
		}
	}()
	waitSnapshots := startSnapshots(ctx, st, tracker, trackerID, time.Duration(watchSnapshotInterval)*time.Second, logger)
	logger.Info("watch started", "dirs", dirs, "idle_timeout_s", watchIdleTimeout)

	if watchPlain || !statusui.IsTerminal() {
		err = statusui.RunPlain(ctx, cmd.OutOrStdout(), tracker, 0)
	} else {
		program := tea.NewProgram(statusui.NewModel(tracker, dirs), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, runErr := program.Run(); runErr != nil && ctx.Err() == nil {
			err = fmt.Errorf("failed to run status TUI: %w", runErr)
		}
	}
	stop()
	wg.Wait()
	waitSnapshots()

	saveSnapshot(context.Background(), st, tracker, trackerID, logger)
	return err
}

// startSnapshots runs recordSnapshots in the background. The returned func
// blocks until the recorder has exited. A non-positive interval records nothing.
func startSnapshots(ctx context.Context, st *store.Store, tracker *activity.Tracker, trackerID string, interval time.Duration, logger *slog.Logger) (wait func()) {
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		recordSnapshots(ctx, st, tracker, trackerID, interval, logger)
	}()
	return func() { <-done }
}

// recordSnapshots stores the tracker state every interval until ctx is done.
func recordSnapshots(ctx context.Context, st *store.Store, tracker *activity.Tracker, trackerID string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveSnapshot(ctx, st, tracker, trackerID, logger)
		}
	}
}

func saveSnapshot(ctx context.Context, st *store.Store, tracker *activity.Tracker, trackerID string, logger *slog.Logger) {
	snap := tracker.Metrics()
	if snap.TotalKeystrokes == 0 {
		return
	}
	rec := model.ActivityRecord{
		TrackerID:  trackerID,
		RecordedAt: time.Now(),
		Snapshot:   snap,
	}
	if err := st.InsertActivitySnapshot(ctx, rec); err != nil {
		logger.Error("failed to store activity snapshot", "error", err)
		return
	}
	logger.Debug("activity snapshot stored", "keystrokes", snap.TotalKeystrokes, "wpm", snap.WPM)
}
