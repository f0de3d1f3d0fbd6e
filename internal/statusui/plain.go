package statusui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/keytally/internal/model"
)

// IsTerminal returns true if both stdout and stdin are TTYs.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// TerminalWidth returns the stdout width, or 0 when it cannot be determined.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// RunPlain prints a status line every interval until ctx is cancelled.
// Lines are only written when the snapshot changed.
func RunPlain(ctx context.Context, w io.Writer, tracker Tracker, interval time.Duration) error {
	if interval <= 0 {
		interval = pollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last model.ActivitySnapshot
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			snap := tracker.Metrics()
			if !first && sameStatus(last, snap) {
				continue
			}
			first = false
			last = snap
			if _, err := fmt.Fprintln(w, PlainLine(now, snap)); err != nil {
				return fmt.Errorf("failed to write status: %w", err)
			}
		}
	}
}

// PlainLine formats a snapshot for line-by-line output.
func PlainLine(at time.Time, s model.ActivitySnapshot) string {
	state := "active"
	if s.IsPaused {
		state = "paused"
	}
	return fmt.Sprintf("%s %s keys=%d backspaces=%d wpm=%.1f accuracy=%.1f%% active=%s",
		at.Format("15:04:05"), state, s.TotalKeystrokes, s.Backspaces, s.WPM, s.Accuracy, FormatActive(s.ActiveDurationMs))
}

func sameStatus(a, b model.ActivitySnapshot) bool {
	return a.TotalKeystrokes == b.TotalKeystrokes && a.IsPaused == b.IsPaused
}
