package github

import (
	"encoding/json"
	"fmt"
	"time"
)

type PRState string

const (
	PRStateOpen   PRState = "OPEN"
	PRStateClosed PRState = "CLOSED"
	PRStateMerged PRState = "MERGED"
	PRStateDraft  PRState = "DRAFT" // Virtual state: GitHub returns OPEN + isDraft=true
)

func (s PRState) String() string {
	return string(s)
}

func (s PRState) IsValid() bool {
	switch s {
	case PRStateOpen, PRStateClosed, PRStateMerged, PRStateDraft:
		return true
	}
	return false
}

// PullRequest is the metadata shown alongside review threads.
type PullRequest struct {
	Number         int
	BranchName     string
	BaseBranch     string
	State          PRState
	Title          string
	AuthorLogin    string
	URL            string
	ReviewDecision string // APPROVED, CHANGES_REQUESTED, REVIEW_REQUIRED or empty
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LinesAdded     int
	LinesDeleted   int
	FilesChanged   int
}

// prGraphQLFields selects the fields PullRequest.UnmarshalJSON reads.
const prGraphQLFields = `number headRefName baseRefName state isDraft title url reviewDecision
      createdAt updatedAt additions deletions changedFiles author { login }`

func (pr *PullRequest) UnmarshalJSON(data []byte) error {
	type rawPR struct {
		Number         int       `json:"number"`
		HeadRefName    string    `json:"headRefName"`
		BaseRefName    string    `json:"baseRefName"`
		State          string    `json:"state"`
		IsDraft        bool      `json:"isDraft"`
		Title          string    `json:"title"`
		URL            string    `json:"url"`
		ReviewDecision string    `json:"reviewDecision"`
		CreatedAt      time.Time `json:"createdAt"`
		UpdatedAt      time.Time `json:"updatedAt"`
		Additions      int       `json:"additions"`
		Deletions      int       `json:"deletions"`
		ChangedFiles   int       `json:"changedFiles"`
		Author         struct {
			Login string `json:"login"`
		} `json:"author"`
	}
	var raw rawPR
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pr.Number = raw.Number
	pr.BranchName = raw.HeadRefName
	pr.BaseBranch = raw.BaseRefName
	pr.Title = raw.Title
	pr.URL = raw.URL
	pr.ReviewDecision = raw.ReviewDecision
	pr.CreatedAt = raw.CreatedAt
	pr.UpdatedAt = raw.UpdatedAt
	pr.LinesAdded = raw.Additions
	pr.LinesDeleted = raw.Deletions
	pr.FilesChanged = raw.ChangedFiles
	pr.AuthorLogin = raw.Author.Login

	if raw.IsDraft && raw.State == "OPEN" {
		pr.State = PRStateDraft
	} else {
		switch raw.State {
		case "OPEN":
			pr.State = PRStateOpen
		case "CLOSED":
			pr.State = PRStateClosed
		case "MERGED":
			pr.State = PRStateMerged
		default:
			return fmt.Errorf("unknown PR state: %s", raw.State)
		}
	}

	return nil
}
