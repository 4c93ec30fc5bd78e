package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config collects everything read from the environment. Commands
// validate only the fields they need, before any network call.
type Config struct {
	TwitterBearerToken string
	TwitterUsername    string

	GeminiAPIKey string

	DatabaseURL string

	TelegramBotToken string
	TelegramChatID   string

	DataDir string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	godotenv.Load()
	godotenv.Load(filepath.Join("config", ".env"))

	cfg := Config{
		TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
		TwitterUsername:    os.Getenv("TWITTER_USERNAME"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:     os.Getenv("TELEGRAM_CHAT_ID"),
		DataDir:            os.Getenv("DATA_DIR"),
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return cfg
}

// RequireTwitter fails fast when platform credentials are missing.
func (c Config) RequireTwitter() error {
	if c.TwitterBearerToken == "" {
		return fmt.Errorf("TWITTER_BEARER_TOKEN must be set in environment or .env file")
	}
	return nil
}

// RequireBrain fails fast when the model credential is missing.
func (c Config) RequireBrain() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must be set in environment or .env file")
	}
	return nil
}

// ArchiveDir is where per-run archive files live.
func (c Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "tweets")
}

// AttemptLogPath is the single append-only outcome log.
func (c Config) AttemptLogPath() string {
	return filepath.Join(c.DataDir, "attempted_replies.jsonl")
}
