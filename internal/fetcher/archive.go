package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
)

const fallbackBackoff = 2 * time.Minute

// Fetcher paginates the authenticated user's complete post history
// into an append-only sink. Partial progress survives a crash: every
// page is written as it arrives.
type Fetcher struct {
	Platform ports.Platform
	Sink     ports.ArchiveSink

	PageSize int
	// PageDelay is the politeness pause between successive page
	// requests, applied even absent rate limiting.
	PageDelay time.Duration
	// OnePage stops after the first page, for pagination debugging.
	OnePage bool

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(platform ports.Platform, sink ports.ArchiveSink) *Fetcher {
	return &Fetcher{
		Platform:  platform,
		Sink:      sink,
		PageSize:  100,
		PageDelay: time.Second,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run fetches every page of the user's history. The only retryable
// condition is a rate-limit signal, which suspends until the
// platform's reset instant (or a fixed fallback). Any other failure
// aborts, preserving everything already written.
func (f *Fetcher) Run(ctx context.Context, userID string) (int, error) {
	total := 0
	cursor := ""
	for {
		page, err := f.Platform.UserPosts(ctx, userID, f.PageSize, cursor)
		if err != nil {
			if rle, ok := ports.AsRateLimit(err); ok {
				wait := fallbackBackoff
				if !rle.Reset.IsZero() {
					if until := time.Until(rle.Reset); until > 0 {
						wait = until
					} else {
						wait = time.Second
					}
				}
				fmt.Printf("Rate limit hit. Sleeping %s until reset...\n", wait.Round(time.Second))
				if err := f.sleep(ctx, wait); err != nil {
					return total, err
				}
				continue // retry the identical request
			}
			return total, err
		}

		for _, item := range page.Items {
			if err := f.Sink.WritePost(Classify(item)); err != nil {
				return total, err
			}
			total++
		}
		fmt.Printf("Fetched %d tweets so far...\n", total)

		// Only an absent cursor terminates; a short page does not.
		if page.NextToken == "" {
			return total, nil
		}
		cursor = page.NextToken
		if f.OnePage {
			fmt.Println("Stopping after first page.")
			return total, nil
		}
		if err := f.sleep(ctx, f.PageDelay); err != nil {
			return total, err
		}
	}
}

// Classify resolves an item's kind from its referenced sub-items.
// A reshare outweighs a quote, which outweighs a reply label.
func Classify(item domain.RawItem) domain.Post {
	kind := domain.KindOriginal
	for _, ref := range item.References {
		switch ref.Type {
		case domain.RefReshared:
			kind = domain.KindReshare
		case domain.RefQuoted:
			if kind != domain.KindReshare {
				kind = domain.KindQuote
			}
		case domain.RefRepliedTo:
			if kind == domain.KindOriginal {
				kind = domain.KindReply
			}
		}
	}
	return domain.Post{
		ID:             item.ID,
		CreatedAt:      item.CreatedAt,
		Text:           item.Text,
		Kind:           kind,
		Metrics:        item.Metrics,
		ConversationID: item.ConversationID,
	}
}
