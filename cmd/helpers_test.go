package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/state"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// mockGitHub implements github.GitHub for testing. Calls may arrive from
// several goroutines.
type mockGitHub struct {
	mu sync.Mutex

	queryFn                func(document string, vars github.Vars) (json.RawMessage, error)
	mutateFn               func(document string, vars github.Vars) (json.RawMessage, error)
	currentRepoFn          func() (string, string, error)
	pullRequestForBranchFn func(branch string) (int, error)

	mutations []string
}

func (m *mockGitHub) Query(_ context.Context, query string, vars github.Vars) (json.RawMessage, error) {
	if m.queryFn != nil {
		return m.queryFn(query, vars)
	}
	return nil, errors.New("unexpected query")
}

func (m *mockGitHub) Mutate(_ context.Context, mutation string, vars github.Vars) (json.RawMessage, error) {
	m.mu.Lock()
	target := vars["threadId"]
	if target == nil {
		target = vars["subjectId"]
	}
	m.mutations = append(m.mutations, fmt.Sprintf("%s %v", operation(mutation), target))
	m.mu.Unlock()

	if m.mutateFn != nil {
		return m.mutateFn(mutation, vars)
	}
	return nil, errors.New("unexpected mutation")
}

func (m *mockGitHub) CurrentRepo(context.Context) (string, string, error) {
	if m.currentRepoFn != nil {
		return m.currentRepoFn()
	}
	return "octo", "hello", nil
}

func (m *mockGitHub) PullRequestForBranch(_ context.Context, branch string) (int, error) {
	if m.pullRequestForBranchFn != nil {
		return m.pullRequestForBranchFn(branch)
	}
	return 0, nil
}

func (m *mockGitHub) recordedMutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.mutations...)
}

// operation returns the GraphQL operation name of a document.
func operation(document string) string {
	fields := strings.Fields(document)
	if len(fields) < 2 {
		return ""
	}
	name, _, _ := strings.Cut(fields[1], "(")
	return name
}

// mockGit implements git.Git for testing.
type mockGit struct {
	currentBranchFn func() (string, error)
}

func (m *mockGit) WorktreeRoot(context.Context) (string, error) {
	return "", nil
}

func (m *mockGit) MainWorktreePath(context.Context) (string, error) {
	return "", nil
}

func (m *mockGit) CurrentBranch(context.Context) (string, error) {
	if m.currentBranchFn != nil {
		return m.currentBranchFn()
	}
	return "main", nil
}

const (
	testPR     = "octo/hello#7"
	threadA    = "PRRT_kwDOAAAA"
	threadB    = "PRRT_kwDOBBBB"
	nitpickOne = "nit-review-1"
)

// seedState writes state for testPR with the given IDs registered and returns
// the state dir.
func seedState(t *testing.T, fullIDs ...string) string {
	t.Helper()
	dir := t.TempDir()
	st := state.New(testPR)
	for _, id := range fullIDs {
		_, err := st.IDMap.Register(id)
		require.NoError(t, err)
	}
	require.NoError(t, state.NewStore(dir).Save(st))
	return dir
}

func loadTestState(t *testing.T, dir string) *state.State {
	t.Helper()
	st, err := state.NewStore(dir).Load(testPR)
	require.NoError(t, err)
	return st
}

// newTestCmd returns a command writing to a buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	return cmd, &buf
}

// setFlag sets a package flag variable for the duration of the test.
func setFlag[T any](t *testing.T, flag *T, value T) {
	t.Helper()
	old := *flag
	*flag = value
	t.Cleanup(func() { *flag = old })
}
