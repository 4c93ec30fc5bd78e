package timeline

import (
	"context"
	"sort"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
)

// Ranker fetches a home-timeline batch and returns the most engaged
// posts, with reshare/quote targets resolved from the batch's
// side-channel lookup tables.
type Ranker struct {
	Platform ports.Platform
}

// TopPosts over-fetches 2×n raw items to compensate for filtering,
// resolves each to a Post, and returns the first n by descending
// engagement. The sort is stable: ties keep platform order.
func (r *Ranker) TopPosts(ctx context.Context, n int) ([]domain.Post, error) {
	batch, err := r.Platform.HomeTimeline(ctx, 2*n)
	if err != nil {
		return nil, err
	}

	posts := Resolve(batch)
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Metrics.Engagement() > posts[j].Metrics.Engagement()
	})
	if len(posts) > n {
		posts = posts[:n]
	}
	return posts, nil
}

// Resolve classifies every item in a batch and resolves referenced
// text. A reshare replaces the displayed text with the target's; a
// quote keeps its own text and attaches the quoted text as a side
// field; a reply only changes the label. A target missing from the
// lookup table leaves the item's own text unchanged.
func Resolve(batch domain.TimelineBatch) []domain.Post {
	posts := make([]domain.Post, 0, len(batch.Items))
	for _, item := range batch.Items {
		kind := domain.KindOriginal
		text := item.Text
		quoted := ""

		for _, ref := range item.References {
			switch ref.Type {
			case domain.RefReshared:
				kind = domain.KindReshare
				if target, ok := batch.Referenced[ref.ID]; ok {
					text = target
				}
			case domain.RefQuoted:
				if kind != domain.KindReshare {
					kind = domain.KindQuote
				}
				quoted = batch.Referenced[ref.ID]
			case domain.RefRepliedTo:
				if kind == domain.KindOriginal {
					kind = domain.KindReply
				}
			}
		}

		post := domain.Post{
			ID:             item.ID,
			CreatedAt:      item.CreatedAt,
			Text:           text,
			Kind:           kind,
			Metrics:        item.Metrics,
			ConversationID: item.ConversationID,
			QuotedText:     quoted,
		}
		if author, ok := batch.Users[item.AuthorID]; ok {
			post.Author = &author
		} else {
			post.Author = &domain.Author{Username: "unknown", Name: "unknown"}
		}
		posts = append(posts, post)
	}
	return posts
}
