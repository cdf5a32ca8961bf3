package connectors

import (
	"context"
	"fmt"
	"time"

	"cryptoagents/src/utils"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second
)

// TelegramNotifier pushes alert text to one chat. It is a no-op when the bot
// token or chat id are missing or placeholders.
type TelegramNotifier struct {
	token  string
	chatID string
	http   *resty.Client
	log    *logger.Entry
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

func NewTelegramNotifier(token, chatID, baseURL string) *TelegramNotifier {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		http:   httpClient,
		log:    logger.WithField("component", "telegram"),
	}
}

// NewTelegramNotifierFromConfig reads the TELEGRAM_* settings.
func NewTelegramNotifierFromConfig(cfg Config) *TelegramNotifier {
	return NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramAPIURL)
}

func (n *TelegramNotifier) Enabled() bool {
	return n != nil && !utils.IsPlaceholder(n.token) && !utils.IsPlaceholder(n.chatID)
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if !n.Enabled() {
		return nil
	}

	var out telegramResponse
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": n.chatID,
			"text":    text,
		}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/bot%s/sendMessage", n.token))
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), out.Description)
	}

	n.log.Debug("alert delivered")
	return nil
}
