package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers messages to a chat. Implementations must be safe for
// concurrent use by both background loops.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// SendMessage posts a Markdown text message to a chat.
func (n *TelegramNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]string{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := n.do(req); err != nil {
		return err
	}

	n.logger.Debug().Int64("chat_id", chatID).Msg("message sent")
	return nil
}

// SendPhoto uploads a PNG with a caption to a chat.
func (n *TelegramNotifier) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("write caption field: %w", err)
		}
		if err := writer.WriteField("parse_mode", "Markdown"); err != nil {
			return fmt.Errorf("write parse_mode field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", "chart.png")
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("write photo part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if err := n.do(req); err != nil {
		return err
	}

	n.logger.Debug().Int64("chat_id", chatID).Int("photo_bytes", len(photo)).Msg("photo sent")
	return nil
}

func (n *TelegramNotifier) do(req *http.Request) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false: %s", result.Description)
		}
	}
	return nil
}

// Broadcast sends text to every recipient, isolating per-recipient failures.
// It returns the number of successful deliveries.
func Broadcast(ctx context.Context, n Notifier, recipients []int64, text string, logger zerolog.Logger) int {
	sent := 0
	for _, chatID := range recipients {
		if err := n.SendMessage(ctx, chatID, text); err != nil {
			logger.Error().Err(err).Int64("chat_id", chatID).Msg("broadcast delivery failed")
			continue
		}
		sent++
	}
	return sent
}

var _ Notifier = (*TelegramNotifier)(nil)
