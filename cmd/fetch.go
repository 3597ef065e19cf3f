package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/jmcampanini/revu/internal/config"
	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/ids"
	"github.com/jmcampanini/revu/internal/pagination"
	"github.com/jmcampanini/revu/internal/review"
	"github.com/jmcampanini/revu/internal/state"
	"github.com/spf13/cobra"
)

var fetchNoCacheFlag bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch review threads and assign short IDs",
	Long: `Fetch the review threads, changed files, reviews and comments of a pull
request and list the threads with their short IDs and local status.

Recorded cursors younger than cache.ttl are replayed so only new pages are
walked. Use --no-cache to fetch everything from scratch.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchNoCacheFlag, "no-cache", false, "Ignore cached cursors and fetch every page")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	return runFetchWithDeps(cmd, nil, nil)
}

func runFetchWithDeps(cmd *cobra.Command, deps *appDeps, cfg *config.Config) error {
	app, err := initAppContext(deps, cfg)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	ref, st, err := app.loadState(ctx, prFlag)
	if err != nil {
		return err
	}

	syncer := review.NewSyncer(app.client(), review.NoNitpicks{}, review.Options{
		TTL:         app.cfg.Cache.TTL,
		Concurrency: app.cfg.GitHub.Concurrency,
		NoCache:     fetchNoCacheFlag,
	})

	snap, err := syncer.Sync(ctx, ref, st)
	if err != nil {
		return err
	}

	if err := app.store.Save(st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return outputFetch(cmd, snap, st, time.Now())
}

var (
	purple    = lipgloss.Color("99")
	gray      = lipgloss.Color("245")
	lightGray = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(gray)
)

// outputFetch prints the pull request header, the thread table, nitpicks and
// a per-query summary.
func outputFetch(cmd *cobra.Command, snap review.Snapshot, st *state.State, now time.Time) error {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", snap.Ref, snap.PR.Title)))
	sb.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", strings.ToLower(string(snap.PR.State)))))
	sb.WriteString("\n")

	if len(snap.Threads) == 0 {
		sb.WriteString("No review threads.\n")
	} else {
		sb.WriteString(threadTable(snap.Threads, st).String())
		sb.WriteString("\n")
	}

	for _, n := range snap.Nitpicks {
		sb.WriteString(fmt.Sprintf("%s  %s  %s\n", displayID(st, n.ID), statusLabel(st, ids.NewID(n.ID)), truncateString(firstLine(n.Body), 60)))
	}

	sb.WriteString("\n")
	sb.WriteString(querySummary(snap.Queries, st.CursorCache, now))

	_, err := fmt.Fprint(cmd.OutOrStdout(), sb.String())
	return err
}

func threadTable(threads []github.ReviewThread, st *state.State) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddRowStyle := cellStyle.Foreground(gray)
	evenRowStyle := cellStyle.Foreground(lightGray)

	rows := make([][]string, len(threads))
	for i, t := range threads {
		resolved := ""
		if t.IsResolved {
			resolved = "✓"
		}

		author, body := "", ""
		if len(t.Comments) > 0 {
			author = t.Comments[0].Author.Login
			body = firstLine(t.Comments[0].Body)
		}

		rows[i] = []string{
			displayID(st, t.ID),
			statusLabel(st, ids.NewID(t.ID)),
			location(t),
			resolved,
			humanize.Comma(int64(len(t.Comments))),
			author,
			truncateString(body, 50),
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return evenRowStyle
			default:
				return oddRowStyle
			}
		}).
		Headers("ID", "Status", "Location", "Resolved", "Comments", "Author", "Comment").
		Rows(rows...)
}

// querySummary renders one line per query type with how it was served.
func querySummary(queries map[string]review.Query, caches pagination.CursorCache, now time.Time) string {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		q := queries[name]
		line := fmt.Sprintf("%-9s %-8s %s items", name, q.Strategy, humanize.Comma(int64(q.Items)))
		if q.Strategy == pagination.StrategyWarm {
			if q.HadNewData {
				line += ", new data"
			} else {
				line += ", no new data"
			}
		}
		if c, ok := caches[name]; ok && !c.FetchedAt.IsZero() {
			line += ", cached " + humanize.RelTime(c.FetchedAt, now, "ago", "from now")
		}
		sb.WriteString(dimStyle.Render(line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// displayID prefers the short ID unless another entity owns it.
func displayID(st *state.State, full string) string {
	short := ids.ShortIDOf(full)
	if st.IDMap[short] == full {
		return short
	}
	return full
}

func statusLabel(st *state.State, id ids.ID) string {
	rec, ok := st.Record(id)
	if !ok {
		return "-"
	}
	return rec.Status.String()
}

func location(t github.ReviewThread) string {
	if t.Line == nil {
		return t.Path
	}
	return fmt.Sprintf("%s:%d", t.Path, *t.Line)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
