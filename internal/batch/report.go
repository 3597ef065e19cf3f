package batch

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sumStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Report writes one line per item and, when more than one item was attempted,
// a "k/n succeeded" summary. It returns true only if every item succeeded and
// there were no invalid or skipped IDs.
func Report(w io.Writer, res Result, invalid []string, nonThreads []Item) (bool, error) {
	lines := make([]string, 0, res.Attempted()+len(invalid)+len(nonThreads)+1)

	for _, id := range res.Successful {
		lines = append(lines, okStyle.Render("✓ "+id))
	}
	for _, item := range nonThreads {
		lines = append(lines, skipStyle.Render(fmt.Sprintf("- %s skipped: not a review thread", item.Token)))
	}
	for _, token := range invalid {
		lines = append(lines, failStyle.Render(fmt.Sprintf("✗ %s: unknown ID", token)))
	}
	for _, f := range res.Failed {
		lines = append(lines, failStyle.Render(fmt.Sprintf("✗ %s: %v", f.ID, f.Err)))
	}
	if n := res.Attempted(); n > 1 {
		lines = append(lines, sumStyle.Render(fmt.Sprintf("%d/%d succeeded", len(res.Successful), n)))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return false, err
		}
	}

	return len(res.Failed) == 0 && len(invalid) == 0 && len(nonThreads) == 0, nil
}
