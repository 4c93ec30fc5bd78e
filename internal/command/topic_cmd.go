package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockapps/kieren-clone/internal/approval"
	"github.com/blockapps/kieren-clone/internal/brain"
	"github.com/blockapps/kieren-clone/internal/config"
	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/guard"
	"github.com/blockapps/kieren-clone/internal/sites/twitter"
	"github.com/blockapps/kieren-clone/internal/storage"
)

// NewTopicCmd creates the topic command.
func NewTopicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Generate and post an original tweet about a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			long, _ := cmd.Flags().GetBool("long")

			topic = strings.TrimSpace(topic)
			if topic == "" {
				return fmt.Errorf("you must provide a topic")
			}

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

			mode := domain.ModeOriginalShort
			if long {
				mode = domain.ModeOriginalLong
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

			fmt.Printf("Generating tweet about: %s\n", topic)
			_, err = loop.Run(ctx, approval.Target{
				SourceText: topic,
				Mode:       mode,
			})
			return err
		},
	}
	cmd.Flags().String("topic", "", "Topic to tweet about")
	cmd.Flags().Bool("long", false, "Generate a long-form post instead of a tweet")
	cmd.MarkFlagRequired("topic")
	return cmd
}
