package github

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// PRRef identifies a pull request.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

// HasRepo reports whether the owner and repository are known.
func (r PRRef) HasRepo() bool {
	return r.Owner != "" && r.Repo != ""
}

// String renders the reference as owner/repo#number.
func (r PRRef) String() string {
	if !r.HasRepo() {
		return fmt.Sprintf("#%d", r.Number)
	}
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

var shorthandRefRegex = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)#(\d+)$`)

// ParsePRRef accepts "123", "#123", "owner/repo#123" or a pull request URL.
// A bare number leaves Owner and Repo empty.
func ParsePRRef(s string) (PRRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PRRef{}, fmt.Errorf("pull request reference cannot be empty")
	}

	if n, err := strconv.Atoi(strings.TrimPrefix(s, "#")); err == nil {
		if n <= 0 {
			return PRRef{}, fmt.Errorf("invalid PR number: %s", s)
		}
		return PRRef{Number: n}, nil
	}

	if m := shorthandRefRegex.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[3])
		if n <= 0 {
			return PRRef{}, fmt.Errorf("invalid PR number: %s", s)
		}
		return PRRef{Owner: m[1], Repo: m[2], Number: n}, nil
	}

	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
		return parsePRURL(s)
	}

	return PRRef{}, fmt.Errorf("unrecognized pull request reference %q (expected 123, owner/repo#123 or a URL)", s)
}

func parsePRURL(s string) (PRRef, error) {
	u, err := url.Parse(s)
	if err != nil {
		return PRRef{}, fmt.Errorf("invalid pull request URL %q: %w", s, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[2] != "pull" {
		return PRRef{}, fmt.Errorf("not a pull request URL: %s", s)
	}

	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return PRRef{}, fmt.Errorf("invalid PR number in URL: %s", s)
	}
	return PRRef{Owner: parts[0], Repo: parts[1], Number: n}, nil
}

// ResolvePRRef parses s and fills in the repository from gh when only a
// number was given.
func ResolvePRRef(ctx context.Context, gh GitHub, s string) (PRRef, error) {
	ref, err := ParsePRRef(s)
	if err != nil {
		return PRRef{}, err
	}
	if ref.HasRepo() {
		return ref, nil
	}

	owner, name, err := gh.CurrentRepo(ctx)
	if err != nil {
		return PRRef{}, fmt.Errorf("failed to determine repository for PR #%d: %w", ref.Number, err)
	}
	ref.Owner = owner
	ref.Repo = name
	return ref, nil
}
