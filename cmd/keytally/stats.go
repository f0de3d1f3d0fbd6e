package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keytally/internal/config"
	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/stats"
	"github.com/verte-zerg/keytally/internal/statsui"
	"github.com/verte-zerg/keytally/internal/statusui"
	"github.com/verte-zerg/keytally/internal/store"
)

const (
	defaultCurveWindow = 20
	defaultBigrams     = 10
)

var (
	statsLang        string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsChars       string
	statsBigrams     int
	statsPlain       bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsLang, "lang", "", "language filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().StringVar(&statsChars, "char", "", "characters for per-char curves")
	cmd.Flags().IntVar(&statsBigrams, "bigrams", defaultBigrams, "number of slowest bigrams to show")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "curve-window", &statsCurveWindow, fileCfg.Stats.CurveWindow)
	applyIntConfig(cmd, "bigrams", &statsBigrams, fileCfg.Stats.Bigrams)

	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow <= 0 {
		return fmt.Errorf("--curve-window must be > 0")
	}
	if statsBigrams < 0 {
		return fmt.Errorf("--bigrams must be >= 0")
	}

	cfg := model.StatsConfig{
		Lang:        statsLang,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
		Chars:       statsChars,
		Bigrams:     statsBigrams,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if !statsPlain && statusui.IsTerminal() {
		load := func(ctx context.Context, cfg model.StatsConfig) (stats.Report, error) {
			return stats.BuildReport(ctx, st, cfg)
		}
		program := tea.NewProgram(statsui.NewModel(load, cfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}

	report, err := stats.BuildReport(context.Background(), st, cfg)
	if err != nil {
		return err
	}
	if len(report.Sessions) == 0 {
		logErrln("No sessions recorded yet. Run keytally to practice.")
		return nil
	}
	return report.Render(cmd.OutOrStdout(), cfg, statusui.TerminalWidth())
}
