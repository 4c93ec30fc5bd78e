package brain

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/blockapps/kieren-clone/internal/core/domain"
	"github.com/blockapps/kieren-clone/internal/core/ports"
)

const personaPrompt = `You are tweeting as Kieren (@kjameslubin)—CEO, blockchain expert, concise, analytical.

Topics & Interests:
- Crypto, DeFi, blockchain technology, appchains
- Market structure, cycles, technical analysis
- Regulation, policy, skepticism about hype or authority
- AI, automation, and software development
- Economics, business cycles, macro trends
- Startups, building, and coding
- Dry or understated humor

Style Guide:
- Concise, direct, and to the point.
- Dry, sometimes wry or understated humor.
- Skeptical, but not cynical—often reality-checking or qualifying claims.
- Analytical, but not verbose; prefers clarity over flourish.
- Will admit uncertainty or partial knowledge ('maybe', 'I think', 'not sure').
- Never uses hashtags, emojis, or hype language.
- Avoids platitudes, excessive enthusiasm, or 'inspirational' tropes.
- If in doubt, err on the side of brevity and skepticism.`

const replyReminder = `IMPORTANT: Your response MUST be a single line of valid JSON in the format {"respond": true/false, "reply": "<text>"}. ` +
	`Do NOT retweet, quote tweet, or use 'RT @' or similar. ` +
	`Do not copy or repeat exact phrases from past tweets. ` +
	`If you would not reply, return {"respond": false}. Otherwise, return {"respond": true, "reply": "<your reply>"}. ` +
	`Never output anything except the JSON object.`

type modelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiBrain generates candidate tweets via the Gemini API, falling
// back through a model list when a model is exhausted or limited.
type GeminiBrain struct {
	Client *genai.Client
	Models []modelConfig

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	mu           sync.Mutex
}

func NewGeminiBrain(ctx context.Context, apiKey string) (*GeminiBrain, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiBrain{
		Client: client,
		Models: []modelConfig{
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
			{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
		},
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

var _ ports.Brain = (*GeminiBrain)(nil)

// Generate invokes the model once and parses the output. Invocation
// failures come back as a declined result, never as an error, so the
// approval loop can keep running.
func (b *GeminiBrain) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	prompt := b.buildPrompt(req)

	raw, err := b.tryGenerateWithFallback(ctx, prompt)
	if err != nil {
		fmt.Printf("Model error: %v\n", err)
		return domain.GenerationResult{}, nil
	}

	switch req.Mode {
	case domain.ModeReply:
		res := ParseReply(raw)
		res.Text = Truncate(res.Text, ShortLimit)
		return res, nil
	case domain.ModeOriginalLong:
		return plainResult(raw, LongLimit), nil
	default:
		return plainResult(raw, ShortLimit), nil
	}
}

// plainResult wraps topic-mode output, where there is no respond
// gate: any non-empty text is usable.
func plainResult(raw string, limit int) domain.GenerationResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.GenerationResult{Raw: raw}
	}
	return domain.GenerationResult{
		ShouldRespond: true,
		Text:          Truncate(text, limit),
		Raw:           raw,
	}
}

func (b *GeminiBrain) buildPrompt(req domain.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString(personaPrompt)

	if len(req.Exemplars) > 0 {
		sb.WriteString("\n\nHere are some of your real tweets as examples:\n")
		for _, t := range req.Exemplars {
			sb.WriteString("- " + t + "\n")
		}
	}
	if len(req.Accepted) > 0 {
		sb.WriteString("\nHere are some of your accepted replies as examples:\n")
		for _, r := range req.Accepted {
			sb.WriteString("- " + r + "\n")
		}
	}

	switch req.Mode {
	case domain.ModeReply:
		sb.WriteString("\n\nGiven the following tweet, determine if you would reply to it.\n\n")
		sb.WriteString(replyReminder)
		sb.WriteString("\n\nTweet: \"" + req.Context + "\"")
	case domain.ModeOriginalLong:
		fmt.Fprintf(&sb, "\n\nWrite an original long-form post about %s. "+
			"Do not mention or tag any users. Do not use @ or reply formatting. "+
			"Make it a standalone statement of at most %d characters. Match my style.", req.Context, LongLimit)
	default:
		fmt.Fprintf(&sb, "\n\nWrite an original tweet about %s. "+
			"Do not mention or tag any users. Do not use @ or reply formatting. "+
			"Do not copy or repeat exact phrases from past tweets. "+
			"Make it a standalone statement of at most %d characters. Match my style.", req.Context, ShortLimit)
	}

	if req.Feedback != "" {
		sb.WriteString("\n\nUser feedback for improvement: " + req.Feedback)
	}
	return sb.String()
}

func (b *GeminiBrain) tryGenerateWithFallback(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.7),
		MaxOutputTokens: 1024,
	}

	for _, cfg := range b.Models {
		if !b.canUseModel(cfg) {
			continue
		}

		result, err := b.Client.Models.GenerateContent(ctx, cfg.Name, genai.Text(prompt), config)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return "", err
		}

		if result != nil && len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
			b.recordUsage(cfg)
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
	}

	return "", fmt.Errorf("all models failed: %v", lastErr)
}

func (b *GeminiBrain) canUseModel(cfg modelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.YearDay() != b.lastResetDay.YearDay() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if b.dailyCount[cfg.Name] >= cfg.RPD {
		return false
	}
	if b.minuteCount[cfg.Name] >= cfg.RPM {
		return false
	}
	return true
}

func (b *GeminiBrain) recordUsage(cfg modelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[cfg.Name]++
	b.minuteCount[cfg.Name]++
}
