package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/blockapps/kieren-clone/internal/core/ports"
)

// Provider collects approval decisions over Telegram: inline buttons
// for the enumerated decisions, plain text replies for feedback and
// manual entry. One pending question at a time; the loop is
// synchronous by design.
type Provider struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64

	mu      sync.Mutex
	pending chan answer
}

type answer struct {
	button string
	text   string
}

func NewProvider(token, chatIDStr string) (*Provider, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %v", err)
	}

	p := &Provider{Bot: bot, ChatID: chatID}
	go p.listen()
	return p, nil
}

var _ ports.DecisionProvider = (*Provider)(nil)

func (p *Provider) listen() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := p.Bot.GetUpdatesChan(u)

	for update := range updates {
		var a answer
		switch {
		case update.CallbackQuery != nil:
			cb := update.CallbackQuery
			a = answer{button: cb.Data}
			p.Bot.Request(tgbotapi.NewCallback(cb.ID, "Got it: "+cb.Data))
			edit := tgbotapi.NewEditMessageReplyMarkup(p.ChatID, cb.Message.MessageID,
				tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
			p.Bot.Send(edit)
		case update.Message != nil && update.Message.Chat != nil && update.Message.Chat.ID == p.ChatID:
			a = answer{text: update.Message.Text}
		default:
			continue
		}

		p.mu.Lock()
		if p.pending != nil {
			p.pending <- a
			p.pending = nil
		}
		p.mu.Unlock()
	}
}

func (p *Provider) ask(ctx context.Context, msg tgbotapi.MessageConfig) (answer, error) {
	ch := make(chan answer, 1)
	p.mu.Lock()
	p.pending = ch
	p.mu.Unlock()

	if _, err := p.Bot.Send(msg); err != nil {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return answer{}, err
	}

	select {
	case a := <-ch:
		return a, nil
	case <-ctx.Done():
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return answer{}, ctx.Err()
	}
}

func (p *Provider) Decide(ctx context.Context, c ports.Candidate) (ports.Decision, error) {
	body := fmt.Sprintf("Source:\n%s\n\nGenerated reply:\n%s", c.SourceText, c.Text)
	if c.Text == "" {
		body = fmt.Sprintf("Source:\n%s\n\nThe model declined to reply. Use Manual to write your own.", c.SourceText)
	}
	if c.DuplicateOf != "" {
		body += "\n\nWarning: very similar to a past tweet:\n" + c.DuplicateOf
	}
	body += "\n\nReply with text to give feedback."

	msg := tgbotapi.NewMessage(p.ChatID, escapeMarkdown(body))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Accept", string(ports.DecisionAccept)),
			tgbotapi.NewInlineKeyboardButtonData("Regenerate", string(ports.DecisionRegenerate)),
			tgbotapi.NewInlineKeyboardButtonData("Manual", string(ports.DecisionManual)),
			tgbotapi.NewInlineKeyboardButtonData("Abort", string(ports.DecisionAbort)),
		),
	)

	a, err := p.ask(ctx, msg)
	if err != nil {
		return ports.Decision{Kind: ports.DecisionAbort}, err
	}
	if a.text != "" {
		return ports.Decision{Kind: ports.DecisionFeedback, Text: strings.TrimSpace(a.text)}, nil
	}
	switch ports.DecisionKind(a.button) {
	case ports.DecisionAccept, ports.DecisionRegenerate, ports.DecisionManual, ports.DecisionAbort:
		return ports.Decision{Kind: ports.DecisionKind(a.button)}, nil
	default:
		return ports.Decision{Kind: ports.DecisionAbort}, nil
	}
}

func (p *Provider) Confirm(ctx context.Context, prompt string) (bool, error) {
	msg := tgbotapi.NewMessage(p.ChatID, escapeMarkdown(prompt))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", "y"),
			tgbotapi.NewInlineKeyboardButtonData("No", "n"),
		),
	)

	a, err := p.ask(ctx, msg)
	if err != nil {
		return false, err
	}
	if a.button == "y" {
		return true, nil
	}
	return strings.EqualFold(strings.TrimSpace(a.text), "y"), nil
}

func (p *Provider) Compose(ctx context.Context, prompt string) (string, error) {
	msg := tgbotapi.NewMessage(p.ChatID, escapeMarkdown(prompt))
	a, err := p.ask(ctx, msg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(a.text), nil
}

// escapeMarkdown guards against Telegram markdown parse errors.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
