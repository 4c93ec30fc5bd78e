package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blockapps/kieren-clone/internal/approval"
	"github.com/blockapps/kieren-clone/internal/brain"
	"github.com/blockapps/kieren-clone/internal/config"
	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
	"github.com/blockapps/kieren-clone/internal/guard"
	"github.com/blockapps/kieren-clone/internal/sites/twitter"
	"github.com/blockapps/kieren-clone/internal/storage"
	"github.com/blockapps/kieren-clone/internal/timeline"
)

const (
	exemplarCount = 3
	corpusCount   = 100
)

// NewReplyCmd creates the reply command.
func NewReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply",
		Short: "Reply to a tweet from your home timeline or a specific tweet by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			tweetID, _ := cmd.Flags().GetString("tweet-id")
			tweetText, _ := cmd.Flags().GetString("tweet-text")
			count, _ := cmd.Flags().GetInt("count")
			batchSize, _ := cmd.Flags().GetInt("batch-size")

			cfg := config.Load()
			if err := cfg.RequireTwitter(); err != nil {
				return err
			}
			if err := cfg.RequireBrain(); err != nil {
				return err
			}
			ctx := cmd.Context()

			client := twitter.NewClient(cfg.TwitterBearerToken, cfg.TwitterUsername)
			myBrain, err := brain.NewGeminiBrain(ctx, cfg.GeminiAPIKey)
			if err != nil {
				return err
			}
			attemptLog, err := newAttemptLog(ctx, cfg)
			if err != nil {
				return err
			}
			provider, err := newDecisionProvider(cfg)
			if err != nil {
				return err
			}

			archivePath := storage.LatestArchive(cfg.ArchiveDir())
			accepted, _ := attemptLog.AcceptedTexts(exemplarCount)

			loop := &approval.Loop{
				Brain:     myBrain,
				Platform:  client,
				Log:       attemptLog,
				Guard:     guard.NewDetector(),
				Decider:   provider,
				Corpus:    storage.LoadArchiveTexts(archivePath, corpusCount),
				Exemplars: storage.LoadArchiveTexts(archivePath, exemplarCount),
				Accepted:  accepted,
				Username:  cfg.TwitterUsername,
			}

			if tweetID != "" {
				if tweetText == "" {
					item, err := client.PostByID(ctx, tweetID)
					if err != nil {
						return err
					}
					tweetText = item.Text
					fmt.Printf("\nSelected tweet (ID: %s):\n%s\n", tweetID, tweetText)
				}
				_, err := loop.Run(ctx, approval.Target{
					ReplyToID:  tweetID,
					SourceText: tweetText,
					Mode:       domain.ModeReply,
				})
				return err
			}

			// Timeline mode: ranked batch, local paging, index pick.
			ranker := &timeline.Ranker{Platform: client}
			posts, err := ranker.TopPosts(ctx, batchSize)
			if err != nil {
				return err
			}
			if len(posts) == 0 {
				fmt.Println("No tweets found in your home timeline.")
				return nil
			}

			selected, ok, err := pickTweet(ctx, provider, posts, count)
			if err != nil || !ok {
				return err
			}
			fmt.Printf("\nSelected tweet by @%s:\n%s\n", selected.Author.Username, selected.Text)

			_, err = loop.Run(ctx, approval.Target{
				ReplyToID:  selected.ID,
				SourceText: selected.Text,
				Mode:       domain.ModeReply,
			})
			return err
		},
	}
	cmd.Flags().String("tweet-id", "", "ID of the tweet to reply to (direct mode)")
	cmd.Flags().String("tweet-text", "", "Text of the tweet to reply to (optional, for direct mode)")
	cmd.Flags().Int("count", 5, "Number of tweets to show per page from the home timeline")
	cmd.Flags().Int("batch-size", 30, "Total number of tweets to fetch in one batch")
	return cmd
}

// pickTweet pages through the ranked batch and asks for an index.
// ok is false when the user gave no usable selection.
func pickTweet(ctx context.Context, provider ports.DecisionProvider, posts []domain.Post, pageSize int) (domain.Post, bool, error) {
	total := len(posts)
	shown := 0
	for shown < total {
		end := shown + pageSize
		if end > total {
			end = total
		}
		fmt.Printf("\nTweets %d-%d of %d (sorted by engagement):\n", shown+1, end, total)
		for i, t := range posts[shown:end] {
			printTimelinePost(shown+i, t)
		}
		shown = end
		if shown >= total {
			break
		}
		more, err := provider.Confirm(ctx, "Show more tweets? (y/n): ")
		if err != nil {
			return domain.Post{}, false, nil
		}
		if !more {
			break
		}
	}

	line, err := provider.Compose(ctx, fmt.Sprintf("Select tweet to reply to [0-%d]: ", total-1))
	if err != nil {
		return domain.Post{}, false, nil
	}
	idx, err := strconv.Atoi(line)
	if err != nil || idx < 0 || idx >= total {
		fmt.Println("Invalid selection.")
		return domain.Post{}, false, nil
	}
	return posts[idx], true, nil
}

func printTimelinePost(idx int, t domain.Post) {
	prefix := ""
	switch t.Kind {
	case domain.KindReshare:
		prefix = "[RT] "
	case domain.KindQuote:
		prefix = "[QT] "
	case domain.KindReply:
		prefix = "[RE] "
	}
	author := t.Author
	if author == nil {
		author = &domain.Author{Username: "unknown", Name: "unknown"}
	}
	fmt.Printf("[%d] @%s (%s) at %s | Engagement: %d (Likes: %d, Replies: %d, RTs: %d, Quotes: %d)\n",
		idx, author.Username, author.Name, t.CreatedAt.Format("2006-01-02 15:04"),
		t.Metrics.Engagement(), t.Metrics.Likes, t.Metrics.Replies, t.Metrics.Reshares, t.Metrics.Quotes)
	fmt.Printf("%s%s\n", prefix, t.Text)
	if t.QuotedText != "" {
		fmt.Printf("  [Quoted] %s\n", t.QuotedText)
	}
	if author.Username != "unknown" {
		fmt.Printf("https://twitter.com/%s/status/%s\n", author.Username, t.ID)
	}
	fmt.Println()
}
