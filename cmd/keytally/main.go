// Package main provides the CLI entrypoint for keytally.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keytally/internal/config"
	"github.com/verte-zerg/keytally/internal/generator"
	"github.com/verte-zerg/keytally/internal/logging"
	"github.com/verte-zerg/keytally/internal/model"
	"github.com/verte-zerg/keytally/internal/stats"
	"github.com/verte-zerg/keytally/internal/store"
	"github.com/verte-zerg/keytally/internal/tui"
	"github.com/verte-zerg/keytally/internal/wordlist"
)

const (
	defaultLang           = "en"
	defaultWords          = 25
	defaultCaps           = 0.5
	defaultPunct          = 0.5
	defaultWeakTop        = 8
	defaultWeakFactor     = 2.0
	defaultWeakWindow     = 20
	defaultLiveIntervalMs = 500
)

const defaultPunctSet = ".,!?;:\"'{}()[]-=/<>`"

var (
	practiceLang           string
	practiceWords          int
	practiceCaps           float64
	practicePunct          float64
	practicePunctSet       string
	practiceFocusWeak      bool
	practiceWeakTop        int
	practiceWeakFactor     float64
	practiceWeakWindow     int
	practiceTextFile       string
	practiceLiveIntervalMs int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keytally",
		Short:         "Typing trainer and keystroke analytics",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.Flags().StringVar(&practiceLang, "lang", defaultLang, "language code (default: en)")
	rootCmd.Flags().IntVar(&practiceWords, "words", defaultWords, "words per text")
	rootCmd.Flags().Float64Var(&practiceCaps, "caps", defaultCaps, "probability of capitalized first letter (0-1)")
	rootCmd.Flags().Float64Var(&practicePunct, "punct", defaultPunct, "punctuation probability per word (0-1)")
	rootCmd.Flags().StringVar(&practicePunctSet, "punct-set", defaultPunctSet, "punctuation set")
	rootCmd.Flags().BoolVar(&practiceFocusWeak, "focus-weak", false, "bias practice toward weak characters and slow bigrams")
	rootCmd.Flags().IntVar(&practiceWeakTop, "weak-top", defaultWeakTop, "number of weak characters and bigrams to focus on")
	rootCmd.Flags().Float64Var(&practiceWeakFactor, "weak-factor", defaultWeakFactor, "weight factor for weak characters")
	rootCmd.Flags().IntVar(&practiceWeakWindow, "weak-window", defaultWeakWindow, "number of recent sessions to compute weak chars")
	rootCmd.Flags().StringVar(&practiceTextFile, "text-file", "", "practice a fixed lesson text instead of generated words")
	rootCmd.Flags().IntVar(&practiceLiveIntervalMs, "live-interval", defaultLiveIntervalMs, "live metrics refresh interval in milliseconds")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLangsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "lang", &practiceLang, fileCfg.Practice.Lang)
	applyIntConfig(cmd, "words", &practiceWords, fileCfg.Practice.Words)
	applyFloatConfig(cmd, "caps", &practiceCaps, fileCfg.Practice.CapsPct)
	applyFloatConfig(cmd, "punct", &practicePunct, fileCfg.Practice.PunctPct)
	applyStringConfig(cmd, "punct-set", &practicePunctSet, fileCfg.Practice.PunctSet)
	applyBoolConfig(cmd, "focus-weak", &practiceFocusWeak, fileCfg.Practice.FocusWeak)
	applyIntConfig(cmd, "weak-top", &practiceWeakTop, fileCfg.Practice.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &practiceWeakFactor, fileCfg.Practice.WeakFactor)
	applyIntConfig(cmd, "weak-window", &practiceWeakWindow, fileCfg.Practice.WeakWindow)
	applyStringConfig(cmd, "text-file", &practiceTextFile, fileCfg.Practice.TextFile)
	applyIntConfig(cmd, "live-interval", &practiceLiveIntervalMs, fileCfg.Practice.LiveIntervalMs)

	cfg := model.Config{
		Lang:         practiceLang,
		Words:        practiceWords,
		CapsPct:      practiceCaps,
		PunctPct:     practicePunct,
		PunctSet:     practicePunctSet,
		FocusWeak:    practiceFocusWeak,
		WeakTop:      practiceWeakTop,
		WeakFactor:   practiceWeakFactor,
		WeakWindow:   practiceWeakWindow,
		TextFile:     practiceTextFile,
		LiveInterval: time.Duration(practiceLiveIntervalMs) * time.Millisecond,
	}

	if err := validateConfig(cfg); err != nil {
		return err
	}

	opts := tui.Options{
		PunctSet: []rune(cfg.PunctSet),
		Gen:      generator.New(),
	}
	if cfg.TextFile != "" {
		lesson, err := wordlist.LoadText(cfg.TextFile)
		if err != nil {
			return fmt.Errorf("failed to load lesson text: %w", err)
		}
		opts.Lesson = lesson
		opts.Source = cfg.TextFile
	} else {
		wordPath := config.DefaultWordListPath(cfg.Lang)
		words, source, err := wordlist.LoadOrDefault(wordPath, cfg.Lang)
		if err != nil {
			return wordListLoadError(cfg.Lang, wordPath, err)
		}
		opts.Words = words
		opts.Source = source
	}

	logs := setupLogger(fileCfg.Log)
	defer closeLogger(logs)
	opts.Logger = logs.Logger

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	opts.Store = st

	if cfg.FocusWeak && cfg.TextFile == "" {
		focus, err := loadFocus(context.Background(), st, cfg)
		if err != nil {
			logErrf("failed to load focus stats: %v\n", err)
		} else if focus.Empty() {
			logErrln("no stats available for focus practice yet; using normal generator")
		}
		opts.Focus = focus
	}

	logs.Logger.Info("practice started", "lang", cfg.Lang, "source", opts.Source, "focus_weak", cfg.FocusWeak)
	program := tea.NewProgram(tui.NewModel(cfg, opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func loadFocus(ctx context.Context, st *store.Store, cfg model.Config) (generator.Focus, error) {
	focus := generator.Focus{Factor: cfg.WeakFactor}
	charAggs, err := st.GetWeakChars(ctx, cfg.WeakWindow, cfg.Lang)
	if err != nil {
		return focus, fmt.Errorf("failed to load weak chars: %w", err)
	}
	bigramAggs, err := st.GetSlowBigrams(ctx, cfg.WeakWindow, cfg.Lang)
	if err != nil {
		return focus, fmt.Errorf("failed to load slow bigrams: %w", err)
	}
	focus.WeakChars = stats.SelectWeakChars(charAggs, cfg.WeakTop)
	focus.SlowBigrams = stats.BigramSet(stats.SelectSlowBigrams(bigramAggs, cfg.WeakTop))
	return focus, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs",
		Short: "List available word list languages",
		Args:  cobra.NoArgs,
		RunE:  runLangsCmd,
	}
}

func runLangsCmd(cmd *cobra.Command, _ []string) error {
	langs, err := wordlist.ListLangs(config.DefaultWordListDir())
	if err != nil {
		return fmt.Errorf("failed to read wordlist directory: %w", err)
	}
	for _, lang := range langs {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), lang); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if len(value) == 0 {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# keytally configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# lang = "en"             # Language code (default %q)
# words = %d              # Words per text
# caps = %.2f             # Probability of capitalized first letter (0-1)
# punct = %.2f            # Punctuation probability per word (0-1)
# punct-set = %q          # Punctuation set
# focus-weak = false      # Bias practice toward weak characters and slow bigrams
# weak-top = %d           # Number of weak characters and bigrams to focus on
# weak-factor = %.1f      # Weight factor for weak characters
# weak-window = %d        # Number of recent sessions to compute weak chars
# text-file = ""          # Fixed lesson text instead of generated words
# live-interval-ms = %d   # Live metrics refresh interval

[stats]
# curve-window = %d       # Moving average window
# bigrams = %d            # Slowest bigrams shown in the report

[tracker]
# idle-timeout = %.1f     # Seconds without activity before the tracker pauses
# extensions = [".go", ".md"]
# snapshot-interval = %d  # Seconds between stored activity snapshots

[server]
# addr = %q
# rate = %.1f             # Requests per second per client (0 disables)
# burst = %d

[log]
# level = "info"          # debug, info, warn, error
# max-size-mb = 10
# max-backups = 3
# max-age-days = 14
# compress = false
`,
		defaultLang,
		defaultWords,
		defaultCaps,
		defaultPunct,
		defaultPunctSet,
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		defaultLiveIntervalMs,
		defaultCurveWindow,
		defaultBigrams,
		defaultIdleTimeout,
		defaultSnapshotInterval,
		defaultAddr,
		defaultRate,
		defaultBurst,
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.Words <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	if cfg.CapsPct < 0 || cfg.CapsPct > 1 {
		return fmt.Errorf("--caps must be between 0 and 1")
	}
	if cfg.PunctPct < 0 || cfg.PunctPct > 1 {
		return fmt.Errorf("--punct must be between 0 and 1")
	}
	if cfg.PunctSet == "" {
		return fmt.Errorf("--punct-set must not be empty")
	}
	if cfg.WeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if cfg.WeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if cfg.WeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	if cfg.LiveInterval <= 0 {
		return fmt.Errorf("--live-interval must be > 0")
	}
	return nil
}

func wordListLoadError(lang, path string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load word list: %v", err),
		fmt.Sprintf("expected word list at: %s", path),
		fmt.Sprintf("language %q not found", lang),
		"Run: keytally langs",
		"Only English is bundled; place other lists in the wordlists directory.",
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

// setupLogger opens the rotating log file. Failures fall back to a discarding
// logger so the terminal UIs still run.
func setupLogger(cfg config.LogConfig) *logging.Result {
	level := slog.LevelInfo
	if cfg.Level != nil {
		parsed, err := logging.ParseLevel(*cfg.Level)
		if err != nil {
			logErrf("%v; using info\n", err)
		}
		level = parsed
	}
	rotation := logging.DefaultRotation()
	if cfg.MaxSizeMB != nil {
		rotation.MaxSizeMB = *cfg.MaxSizeMB
	}
	if cfg.MaxBackups != nil {
		rotation.MaxBackups = *cfg.MaxBackups
	}
	if cfg.MaxAgeDays != nil {
		rotation.MaxAgeDays = *cfg.MaxAgeDays
	}
	if cfg.Compress != nil {
		rotation.Compress = *cfg.Compress
	}
	result, err := logging.Setup(config.DefaultLogPath(), level, rotation)
	if err != nil {
		logErrf("failed to set up logging: %v\n", err)
		return &logging.Result{Logger: logging.Discard()}
	}
	return result
}

func closeLogger(r *logging.Result) {
	if err := r.Close(); err != nil {
		logErrf("failed to close log file: %v\n", err)
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
