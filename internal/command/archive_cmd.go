package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockapps/kieren-clone/internal/config"
	"github.com/blockapps/kieren-clone/internal/fetcher"
	"github.com/blockapps/kieren-clone/internal/sites/twitter"
)

// NewArchiveCmd creates the archive command.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Fetch your complete post history into a JSONL archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			pageSize, _ := cmd.Flags().GetInt("page-size")
			onePage, _ := cmd.Flags().GetBool("one-page")

			cfg := config.Load()
			if err := cfg.RequireTwitter(); err != nil {
				return err
			}
			ctx := cmd.Context()
			client := twitter.NewClient(cfg.TwitterBearerToken, cfg.TwitterUsername)

			fmt.Println("Fetching all tweets from your timeline (including retweets and replies)...")
			me, err := client.Me(ctx)
			if err != nil {
				return fmt.Errorf("could not determine authenticated user: %w", err)
			}
			if me.TweetCount > 0 {
				fmt.Printf("Total tweet count (including retweets and replies): %d\n", me.TweetCount)
			}

			sink, dest, err := newArchiveSink(ctx, cfg, me.Username)
			if err != nil {
				return err
			}
			defer sink.Close()

			f := fetcher.New(client, sink)
			f.PageSize = pageSize
			f.OnePage = onePage

			total, err := f.Run(ctx, me.ID)
			if err != nil {
				// Everything already written stays put.
				fmt.Printf("Saved %d tweets to %s before failure.\n", total, dest)
				return err
			}
			fmt.Printf("\nDone! Saved %d tweets to %s\n", total, dest)
			return nil
		},
	}
	cmd.Flags().Int("page-size", 100, "Number of tweets to fetch per page")
	cmd.Flags().Bool("one-page", false, "Only fetch one page, for pagination testing")
	return cmd
}
