package notify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const telegramAPI = "https://api.telegram.org"

// codePattern matches a bare one-time code sent as a chat message.
var codePattern = regexp.MustCompile(`^\d{4,8}$`)

// Telegram sends notifications to a Telegram chat and long-polls the same
// chat for operator-supplied one-time codes.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
	offset int
	log    zerolog.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and
// authorized chat ID.
func NewTelegram(token, chatID string, log zerolog.Logger) *Telegram {
	client := resty.New()
	client.SetBaseURL(telegramAPI)
	client.SetTimeout(75 * time.Second)

	return &Telegram{
		client: client,
		token:  token,
		chatID: chatID,
		log:    log.With().Str("component", "telegram").Logger(),
	}
}

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

type telegramUpdateResponse struct {
	Ok          bool             `json:"ok"`
	Result      []telegramUpdate `json:"result"`
	Description string           `json:"description"`
}

// Notify sends the text to the configured chat. Failures are logged, never
// propagated.
func (t *Telegram) Notify(text string) {
	resp, err := t.client.R().
		SetBody(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		t.log.Warn().Err(err).Msg("sendMessage failed")
		return
	}
	if resp.StatusCode() != 200 {
		t.log.Warn().Int("status", resp.StatusCode()).Msg("sendMessage rejected")
	}
}

// RequestCode prompts the chat for a code and long-polls until a message
// consisting of a bare numeric code arrives from the authorized chat, or
// the context is cancelled.
func (t *Telegram) RequestCode(ctx context.Context, label string) (string, error) {
	t.Notify(fmt.Sprintf("%s: reply with the one-time code", label))

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		var result telegramUpdateResponse
		resp, err := t.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"offset":  fmt.Sprintf("%d", t.offset),
				"timeout": "25",
			}).
			SetResult(&result).
			Get(fmt.Sprintf("/bot%s/getUpdates", t.token))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			t.log.Warn().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if resp.StatusCode() != 200 || !result.Ok {
			t.log.Warn().Int("status", resp.StatusCode()).Str("description", result.Description).Msg("getUpdates rejected")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range result.Result {
			t.offset = update.UpdateID + 1

			chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
			if chatID != t.chatID {
				t.log.Warn().
					Str("username", update.Message.From.Username).
					Str("chat_id", chatID).
					Msg("ignoring message from unauthorized chat")
				continue
			}

			text := strings.TrimSpace(update.Message.Text)
			if codePattern.MatchString(text) {
				return text, nil
			}
		}
	}
}
