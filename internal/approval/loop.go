package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
	"github.com/blockapps/kieren-clone/internal/guard"
)

// Disclaimer suffixes appended to model-generated text before
// publishing. Manual text is exempt.
const (
	ReplyDisclaimer = "\n\n(This reply was AI generated based on my personality.)"
	TweetDisclaimer = "\n\n(This tweet was AI generated based on my personality.)"
)

// DefaultMaxRadical caps consecutive no-feedback regenerations
// before the loop demands feedback or a manual entry.
const DefaultMaxRadical = 3

// Outcome is the terminal state of one approval session.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeAborted   Outcome = "aborted"
)

// Target is what one approval session acts on: a post to reply to,
// or a topic for an original post.
type Target struct {
	// ReplyToID is empty in topic mode.
	ReplyToID  string
	SourceText string
	Mode       domain.GenerationMode
}

// Loop drives the generate → present → decide → publish cycle. It
// owns the transient feedback and radical-attempt state for the
// duration of one session and discards it on exit.
type Loop struct {
	Brain    ports.Brain
	Platform ports.Platform
	Log      ports.AttemptLog
	Guard    *guard.Detector
	Decider  ports.DecisionProvider

	// Corpus is the past-post texts the duplicate guard compares
	// candidates against.
	Corpus []string
	// Exemplars and Accepted ground the generator's style.
	Exemplars []string
	Accepted  []string

	// MaxRadical overrides DefaultMaxRadical when positive.
	MaxRadical int
	// Username builds the posted-tweet link; cosmetic only.
	Username string
}

func (l *Loop) maxRadical() int {
	if l.MaxRadical > 0 {
		return l.MaxRadical
	}
	return DefaultMaxRadical
}

func (l *Loop) disclaimer(target Target) string {
	if target.Mode == domain.ModeReply {
		return ReplyDisclaimer
	}
	return TweetDisclaimer
}

// Run executes one approval session. A publish failure is the only
// error it returns; every human-driven exit is OutcomeAborted with a
// nil error.
func (l *Loop) Run(ctx context.Context, target Target) (Outcome, error) {
	feedback := ""
	radical := 0

	for {
		if ctx.Err() != nil {
			return OutcomeAborted, nil
		}

		res, err := l.Brain.Generate(ctx, domain.GenerationRequest{
			Context:   target.SourceText,
			Mode:      target.Mode,
			Feedback:  feedback,
			Exemplars: l.Exemplars,
			Accepted:  l.Accepted,
		})
		if err != nil {
			res = domain.GenerationResult{}
		}

		candidate := ""
		if res.ShouldRespond && res.Text != "" {
			candidate = res.Text
		} else {
			fmt.Println("\nThe model could not generate a reply. You can enter your own.")
			l.record(target, "", feedback, "", domain.StatusNoModelReply)
		}

		cand := ports.Candidate{SourceText: target.SourceText, Text: candidate}
		if candidate != "" && l.Guard != nil {
			if m := l.Guard.Check(candidate, l.Corpus); m.Found {
				cand.DuplicateOf = m.Text
			}
		}

		// Decisions on this candidate; some return to it without
		// regenerating.
		for {
			d, err := l.Decider.Decide(ctx, cand)
			if err != nil {
				// Interrupt: exit without logging, preserving
				// already-written records.
				return OutcomeAborted, nil
			}

			switch d.Kind {
			case ports.DecisionAbort:
				return OutcomeAborted, nil

			case ports.DecisionAccept:
				return l.acceptCandidate(ctx, target, candidate, feedback)

			case ports.DecisionManual:
				outcome, done, err := l.manualEntry(ctx, target, candidate, feedback)
				if done {
					return outcome, err
				}
				// Same candidate still live.
				continue

			case ports.DecisionFeedback:
				l.record(target, candidate, feedback, "", domain.StatusRejected)
				feedback = d.Text
				radical = 0

			case ports.DecisionRegenerate:
				feedback = ""
				radical++
				if radical > l.maxRadical() {
					outcome, done, err := l.demandFeedback(ctx, target, candidate, &feedback, &radical)
					if done {
						return outcome, err
					}
				}
			}
			break
		}
	}
}

// acceptCandidate handles the empty-input accept: confirm, append
// the disclaimer, and publish.
func (l *Loop) acceptCandidate(ctx context.Context, target Target, candidate, feedback string) (Outcome, error) {
	if candidate == "" {
		fmt.Println("No reply provided. Exiting.")
		l.record(target, candidate, feedback, "", domain.StatusRejected)
		return OutcomeAborted, nil
	}

	ok, err := l.Decider.Confirm(ctx, fmt.Sprintf("\nPost this reply? (y/n): %s\n", candidate))
	if err != nil {
		return OutcomeAborted, nil
	}
	if !ok {
		fmt.Println("Aborted by user.")
		l.record(target, candidate, feedback, candidate, domain.StatusRejected)
		return OutcomeAborted, nil
	}

	final := candidate + l.disclaimer(target)
	return l.publish(ctx, target, candidate, feedback, final)
}

// manualEntry solicits a human-authored replacement and publishes it
// verbatim on confirmation. Declining (or entering nothing) keeps
// the current candidate live; done reports whether the session ended.
func (l *Loop) manualEntry(ctx context.Context, target Target, candidate, feedback string) (outcome Outcome, done bool, err error) {
	text, err := l.Decider.Compose(ctx, "Enter your reply: ")
	if err != nil {
		return OutcomeAborted, true, nil
	}
	if text == "" {
		fmt.Println("No manual reply provided. Returning to feedback loop.")
		return "", false, nil
	}

	ok, err := l.Decider.Confirm(ctx, fmt.Sprintf("\nPost this manual reply? (y/n): %s\n", text))
	if err != nil {
		return OutcomeAborted, true, nil
	}
	if !ok {
		return "", false, nil
	}

	// Manual text goes out without the disclaimer.
	outcome, pubErr := l.publish(ctx, target, candidate, feedback, text)
	return outcome, true, pubErr
}

// demandFeedback is the anti-thrashing guard: after too many
// consecutive regenerations the loop insists on feedback, a manual
// entry, or an accept.
func (l *Loop) demandFeedback(ctx context.Context, target Target, candidate string, feedback *string, radical *int) (Outcome, bool, error) {
	fmt.Printf("Tried %d radically different replies. Please provide feedback or enter your own reply.\n", l.maxRadical())
	text, err := l.Decider.Compose(ctx, "Feedback for the AI (or press Enter to accept and post this reply, or 'manual' to write your own reply): ")
	if err != nil {
		return OutcomeAborted, true, nil
	}

	switch strings.ToLower(text) {
	case "manual", "m":
		return l.manualEntry(ctx, target, candidate, *feedback)
	case "":
		outcome, err := l.acceptCandidate(ctx, target, candidate, *feedback)
		return outcome, true, err
	default:
		l.record(target, candidate, *feedback, "", domain.StatusRejected)
		*feedback = text
		*radical = 0
		return "", false, nil
	}
}

// publish posts the final text and records the user's intent. The
// accepted record is written even when the new post id could not be
// retrieved; only a failing publish call skips it.
func (l *Loop) publish(ctx context.Context, target Target, generated, feedback, final string) (Outcome, error) {
	id, err := l.Platform.Publish(ctx, final, target.ReplyToID)
	if err != nil {
		fmt.Printf("Error posting: %v\n", err)
		return OutcomeAborted, err
	}

	if id != "" {
		username := l.Username
		if username == "" {
			username = "me"
		}
		fmt.Printf("Posted: https://twitter.com/%s/status/%s\n", username, id)
	} else {
		fmt.Println("Posted, but could not retrieve tweet ID.")
	}
	l.record(target, generated, feedback, final, domain.StatusAccepted)
	return OutcomePublished, nil
}

// record appends one outcome row. A failing append is reported, not
// fatal: the session must not crash mid-cycle over logging.
func (l *Loop) record(target Target, generated, feedback, final string, status domain.AttemptStatus) {
	if l.Log == nil {
		return
	}
	err := l.Log.Append(domain.AttemptRecord{
		Timestamp:     time.Now().UTC(),
		SourceText:    target.SourceText,
		GeneratedText: generated,
		UserFeedback:  feedback,
		FinalText:     final,
		Status:        status,
	})
	if err != nil {
		fmt.Printf("Warning: could not write attempt record: %v\n", err)
	}
}
