package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/justsurfingit/studentva/internal/config"
	"github.com/justsurfingit/studentva/internal/models"
	"github.com/justsurfingit/studentva/internal/storage"
)

// TelegramService posts a text summary to one chat via the Bot API.
type TelegramService struct {
	cfg    config.TelegramConfig
	client *resty.Client
	now    func() time.Time
}

func NewTelegramService(cfg config.TelegramConfig) *TelegramService {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &TelegramService{cfg: cfg, client: client, now: time.Now}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	} `json:"result"`
}

// BotInfo is the subset of getMe used by the check command.
type BotInfo struct {
	FirstName string
	Username  string
}

func (s *TelegramService) Name() string { return "telegram" }

// Notify posts the summary to the configured chat. Missing credentials skip silently.
func (s *TelegramService) Notify(ctx context.Context, app models.Application, _ *storage.StagedFile) error {
	if !s.cfg.Configured() {
		slog.InfoContext(ctx, "telegram credentials not configured, skipping telegram notification")
		return nil
	}
	return s.send(ctx, FormatTelegramMessage(app, s.now()))
}

func (s *TelegramService) SendTest(ctx context.Context) error {
	if !s.cfg.Configured() {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")
	}
	text := fmt.Sprintf("🧪 *Test Message*\n\nThis is a test from your Student VA backend.\nTime: %s", s.now().Format(submittedLayout))
	return s.send(ctx, text)
}

// GetMe returns the bot identity; used to check the token.
func (s *TelegramService) GetMe(ctx context.Context) (BotInfo, error) {
	if s.cfg.BotToken == "" {
		return BotInfo{}, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	var out apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get(s.methodPath("getMe"))
	if err != nil {
		return BotInfo{}, s.redact(fmt.Errorf("telegram getMe: %w", err))
	}
	if resp.IsError() || !out.OK {
		return BotInfo{}, fmt.Errorf("%w: getMe status %d: %s", ErrTelegramAPI, resp.StatusCode(), out.Description)
	}
	return BotInfo{FirstName: out.Result.FirstName, Username: out.Result.Username}, nil
}

func (s *TelegramService) send(ctx context.Context, text string) error {
	var out apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: s.cfg.ChatID, Text: text, ParseMode: "Markdown"}).
		SetResult(&out).
		SetError(&out).
		Post(s.methodPath("sendMessage"))
	if err != nil {
		return s.redact(fmt.Errorf("telegram sendMessage: %w", err))
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("%w: sendMessage status %d: %s", ErrTelegramAPI, resp.StatusCode(), out.Description)
	}
	return nil
}

func (s *TelegramService) methodPath(method string) string {
	return "/bot" + s.cfg.BotToken + "/" + method
}

// redact keeps the bot token out of logged transport errors.
func (s *TelegramService) redact(err error) error {
	if s.cfg.BotToken == "" || !strings.Contains(err.Error(), s.cfg.BotToken) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), s.cfg.BotToken, "<redacted>"))
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatTelegramMessage renders the legacy-Markdown summary; submitted text is escaped.
func FormatTelegramMessage(app models.Application, submitted time.Time) string {
	field := func(v, fallback string) string {
		return escapeMarkdown(models.OrDefault(v, fallback))
	}
	var b strings.Builder
	b.WriteString("📝 *New Application Received*\n\n")
	fmt.Fprintf(&b, "*Name:* %s\n", escapeMarkdown(app.FullName))
	fmt.Fprintf(&b, "*Email:* %s\n", escapeMarkdown(app.Email))
	fmt.Fprintf(&b, "*Phone:* %s\n", field(app.Phone, models.NotProvided))
	fmt.Fprintf(&b, "*Country:* %s\n", escapeMarkdown(app.Country))
	fmt.Fprintf(&b, "*Education:* %s\n\n", field(app.Education.Label(), models.NotSpecified))
	fmt.Fprintf(&b, "*Skills:*\n%s\n\n", field(app.Skills, models.NotProvided))
	fmt.Fprintf(&b, "*Experience:*\n%s\n\n", field(app.Experience, models.NotProvided))
	fmt.Fprintf(&b, "*Why hire them:*\n%s\n\n", escapeMarkdown(app.Pitch))
	fmt.Fprintf(&b, "📅 Submitted: %s", submitted.Format(submittedLayout))
	return b.String()
}
