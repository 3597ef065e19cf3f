package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// GitHubCli talks to GitHub by executing the gh CLI.
type GitHubCli struct {
	limiter    *rate.Limiter
	log        *clog.Logger
	timeout    time.Duration
	workingDir string
}

var _ GitHub = &GitHubCli{}

// New creates a GitHubCli that runs gh in workingDir. A zero timeout leaves
// calls unbounded. Calls are paced by limiter.
func New(workingDir string, timeout time.Duration, limiter *rate.Limiter) GitHub {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &GitHubCli{
		limiter:    limiter,
		log:        clog.Default().WithPrefix("github"),
		timeout:    timeout,
		workingDir: workingDir,
	}
}

// NewLimiter returns a limiter allowing requestsPerSecond gh calls per second.
// Zero or less means unlimited.
func NewLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

type ghResult struct {
	stdout string
	stderr string
}

func (g *GitHubCli) executeGhCommand(ctx context.Context, args ...string) (ghResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ghResult{}, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.log.Debug("Executing gh command", "cmd", "gh", "args", redactArgs(args), "workingDir", g.workingDir)

	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = g.workingDir
	cmd.Env = append(os.Environ(), "GH_PROMPT_DISABLED=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		res := ghResult{stdout: strings.TrimSpace(stdout.String()), stderr: strings.TrimSpace(stderr.String())}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.log.Warn("gh command timed out", "args", redactArgs(args), "timeout", g.timeout, "error", err)
			return res, fmt.Errorf("gh %s timed out after %s", args[0], g.timeout)
		}
		g.log.Warn("gh command failed", "args", redactArgs(args), "stderr", res.stderr, "error", err)
		return res, err
	}

	res := ghResult{stdout: strings.TrimSpace(stdout.String()), stderr: strings.TrimSpace(stderr.String())}
	g.log.Debug("gh command succeeded", "args", redactArgs(args), "outputLen", len(res.stdout))
	return res, nil
}

func (g *GitHubCli) graphQL(ctx context.Context, op, document string, vars Vars) (json.RawMessage, error) {
	res, runErr := g.executeGhCommand(ctx, buildGraphQLArgs(document, vars)...)
	return graphQLResult(op, res, runErr)
}

// graphQLResult interprets a gh api graphql run. gh prints the response body
// even when it exits non-zero for GraphQL errors, so a JSON body is preferred
// over stderr. A failed run whose stdout is not JSON reports stderr.
func graphQLResult(op string, res ghResult, runErr error) (json.RawMessage, error) {
	if res.stdout != "" && (runErr == nil || json.Valid([]byte(res.stdout))) {
		data, err := parseGraphQLResponse(op, []byte(res.stdout))
		if err != nil || runErr == nil {
			return data, err
		}
	}

	if runErr != nil {
		msg := strings.TrimPrefix(res.stderr, "gh: ")
		return nil, &RemoteError{Op: op, Message: msg, Err: runErr}
	}
	return nil, &RemoteError{Op: op, Message: "empty response"}
}

func (g *GitHubCli) Query(ctx context.Context, query string, vars Vars) (json.RawMessage, error) {
	return g.graphQL(ctx, "query "+operationName(query), query, vars)
}

func (g *GitHubCli) Mutate(ctx context.Context, mutation string, vars Vars) (json.RawMessage, error) {
	return g.graphQL(ctx, "mutation "+operationName(mutation), mutation, vars)
}

func (g *GitHubCli) CurrentRepo(ctx context.Context) (string, string, error) {
	res, err := g.executeGhCommand(ctx, "repo", "view", "--json", "owner,name")
	if err != nil {
		return "", "", &RemoteError{Op: "gh repo view", Message: strings.TrimPrefix(res.stderr, "gh: "), Err: err}
	}

	var repo struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &repo); err != nil {
		return "", "", fmt.Errorf("failed to parse repository: %w", err)
	}
	if repo.Owner.Login == "" || repo.Name == "" {
		return "", "", errors.New("gh did not report a repository for the current directory")
	}
	return repo.Owner.Login, repo.Name, nil
}

func (g *GitHubCli) PullRequestForBranch(ctx context.Context, branch string) (int, error) {
	res, err := g.executeGhCommand(ctx, "pr", "view", branch, "--json", "number")
	if err != nil {
		if strings.Contains(res.stderr, "no pull requests found") {
			return 0, nil
		}
		return 0, &RemoteError{Op: "gh pr view", Message: strings.TrimPrefix(res.stderr, "gh: "), Err: err}
	}

	var pr struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &pr); err != nil {
		return 0, fmt.Errorf("failed to parse pull request for %s: %w", branch, err)
	}
	return pr.Number, nil
}

// buildGraphQLArgs renders the gh api graphql invocation. Strings use -f so gh
// sends them verbatim; other values use -F so gh keeps their JSON type.
func buildGraphQLArgs(document string, vars Vars) []string {
	args := []string{"api", "graphql", "-f", "query=" + document}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := vars[k].(type) {
		case nil:
			continue
		case *string:
			if v == nil {
				continue
			}
			args = append(args, "-f", k+"="+*v)
		case string:
			args = append(args, "-f", k+"="+v)
		default:
			args = append(args, "-F", fmt.Sprintf("%s=%v", k, v))
		}
	}
	return args
}

func parseGraphQLResponse(op string, body []byte) (json.RawMessage, error) {
	var resp struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &RemoteError{Op: op, Message: "unparseable response", Err: err}
	}
	if len(resp.Errors) > 0 {
		return nil, newGraphQLError(op, resp.Errors)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, &RemoteError{Op: op, Message: "response has no data"}
	}
	return resp.Data, nil
}

// operationName extracts the name after the leading query/mutation keyword.
func operationName(document string) string {
	fields := strings.Fields(document)
	if len(fields) < 2 || (fields[0] != "query" && fields[0] != "mutation") {
		return "anonymous"
	}
	name := fields[1]
	if i := strings.IndexAny(name, "({"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "anonymous"
	}
	return name
}

// redactArgs keeps GraphQL documents out of debug logs.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "query=") {
			out[i] = "query=<" + operationName(strings.TrimPrefix(a, "query=")) + ">"
			continue
		}
		out[i] = a
	}
	return out
}
