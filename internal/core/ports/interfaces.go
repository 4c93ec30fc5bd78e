package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockapps/kieren-clone/internal/core/domain"
)

// Platform is the social-platform API surface the assistant needs.
// Implementations map their wire formats to domain types; they never
// classify or rank, that belongs to the core.
type Platform interface {
	Me(ctx context.Context) (domain.Account, error)
	UserPosts(ctx context.Context, userID string, pageSize int, cursor string) (domain.Page, error)
	HomeTimeline(ctx context.Context, count int) (domain.TimelineBatch, error)
	PostByID(ctx context.Context, id string) (domain.RawItem, error)
	// Publish posts text, optionally as a reply. The returned id may
	// be empty when the platform accepted the post but the response
	// carried no id ("posted, id unknown").
	Publish(ctx context.Context, text, replyToID string) (string, error)
}

// RateLimitError signals the one retryable platform condition. Reset
// is zero when the platform gave no reset instant.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "platform rate limit hit"
	}
	return fmt.Sprintf("platform rate limit hit, resets at %s", e.Reset.Format(time.RFC3339))
}

// AsRateLimit unwraps err as a rate-limit signal.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// Brain produces candidate text. Invocation failures are mapped to a
// declined result, never propagated as faults into the loop.
type Brain interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

// ArchiveSink receives classified posts as each page arrives, so
// partial progress survives a crash mid-run.
type ArchiveSink interface {
	WritePost(post domain.Post) error
	Close() error
}

// AttemptLog is the append-only outcome log. It doubles as the
// exemplar source for accepted style grounding.
type AttemptLog interface {
	Append(rec domain.AttemptRecord) error
	AcceptedTexts(limit int) ([]string, error)
}

// DecisionKind enumerates the human decisions one approval cycle
// can produce.
type DecisionKind string

const (
	DecisionAccept     DecisionKind = "accept"
	DecisionFeedback   DecisionKind = "feedback"
	DecisionRegenerate DecisionKind = "regenerate"
	DecisionManual     DecisionKind = "manual"
	DecisionAbort      DecisionKind = "abort"
)

// Decision is one human decision. Text is only set for feedback.
type Decision struct {
	Kind DecisionKind
	Text string
}

// Candidate is what gets presented for a decision.
type Candidate struct {
	SourceText string
	Text       string
	// DuplicateOf holds the near-duplicate past post when the guard
	// flagged the candidate, empty otherwise. Advisory only.
	DuplicateOf string
}

// DecisionProvider abstracts the interactive surface. A scripted
// provider stands in for a real terminal in tests.
type DecisionProvider interface {
	Decide(ctx context.Context, c Candidate) (Decision, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
	Compose(ctx context.Context, prompt string) (string, error)
}
