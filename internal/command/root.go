package command

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blockapps/kieren-clone/internal/config"
	"github.com/blockapps/kieren-clone/internal/core/ports"
	"github.com/blockapps/kieren-clone/internal/storage"
	"github.com/blockapps/kieren-clone/internal/ui/telegram"
	"github.com/blockapps/kieren-clone/internal/ui/terminal"
)

// Execute runs the CLI. Interrupts cancel the context so the
// approval loop can exit between cycles without logging.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kieren-clone",
		Short:         "Personal social-media assistant: archive, reply, and post with human approval",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewArchiveCmd())
	cmd.AddCommand(NewReplyCmd())
	cmd.AddCommand(NewTopicCmd())
	return cmd
}

// newAttemptLog picks Postgres when DATABASE_URL is set, JSONL
// otherwise.
func newAttemptLog(ctx context.Context, cfg config.Config) (ports.AttemptLog, error) {
	if cfg.DatabaseURL != "" {
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return storage.NewAttemptLog(cfg.AttemptLogPath())
}

// newArchiveSink picks Postgres when DATABASE_URL is set, a per-run
// JSONL file otherwise. The returned label names the destination for
// status output.
func newArchiveSink(ctx context.Context, cfg config.Config, username string) (ports.ArchiveSink, string, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, "database", nil
	}
	w, err := storage.NewArchiveWriter(cfg.ArchiveDir(), username)
	if err != nil {
		return nil, "", err
	}
	return w, w.Path, nil
}

// newDecisionProvider picks Telegram when its credentials are set,
// the terminal otherwise.
func newDecisionProvider(cfg config.Config) (ports.DecisionProvider, error) {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		return telegram.NewProvider(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	return terminal.NewProvider(), nil
}
