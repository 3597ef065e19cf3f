package batch

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcampanini/revu/internal/ids"
)

func TestReport(t *testing.T) {
	nit := []Item{{Token: "c0ffee", ID: ids.NewID(nitpickC)}}

	tests := []struct {
		name        string
		res         Result
		invalid     []string
		nonThreads  []Item
		wantOK      bool
		wantLines   []string
		wantSummary string
	}{
		{
			name:      "single success has no summary",
			res:       Result{Successful: []string{"aaaaaa"}},
			wantOK:    true,
			wantLines: []string{"✓ aaaaaa"},
		},
		{
			name:        "all succeeded",
			res:         Result{Successful: []string{"aaaaaa", "bbbbbb"}},
			wantOK:      true,
			wantLines:   []string{"✓ aaaaaa", "✓ bbbbbb"},
			wantSummary: "2/2 succeeded",
		},
		{
			name:        "failure carries its message",
			res:         Result{Successful: []string{"aaaaaa"}, Failed: []Failure{{ID: "bbbbbb", Err: errors.New("rate limited")}}},
			wantLines:   []string{"✓ aaaaaa", "✗ bbbbbb: rate limited"},
			wantSummary: "1/2 succeeded",
		},
		{
			name:       "non-thread skip fails the batch",
			res:        Result{Successful: []string{"aaaaaa"}},
			nonThreads: nit,
			wantLines:  []string{"✓ aaaaaa", "- c0ffee skipped: not a review thread"},
		},
		{
			name:      "invalid ID fails the batch",
			res:       Result{Successful: []string{"aaaaaa"}},
			invalid:   []string{"123456"},
			wantLines: []string{"✓ aaaaaa", "✗ 123456: unknown ID"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			ok, err := Report(&out, tt.res, tt.invalid, tt.nonThreads)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			got := out.String()
			for _, line := range tt.wantLines {
				assert.Contains(t, got, line)
			}
			if tt.wantSummary == "" {
				assert.NotContains(t, got, "succeeded")
			} else {
				assert.Contains(t, got, tt.wantSummary)
			}
		})
	}
}

func TestReport_LineOrder(t *testing.T) {
	res := Result{
		Successful: []string{"aaaaaa"},
		Failed:     []Failure{{ID: "bbbbbb", Err: errors.New("boom")}},
	}
	nonThreads := []Item{{Token: "cccccc", ID: ids.NewID(nitpickC)}}

	var out bytes.Buffer
	_, err := Report(&out, res, []string{"dddddd"}, nonThreads)
	require.NoError(t, err)

	got := out.String()
	order := []string{"aaaaaa", "cccccc", "dddddd", "bbbbbb", "1/2 succeeded"}
	last := -1
	for _, s := range order {
		i := strings.Index(got, s)
		require.GreaterOrEqual(t, i, 0, "missing %q", s)
		assert.Greater(t, i, last, "%q out of order", s)
		last = i
	}
}
