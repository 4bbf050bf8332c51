package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const defaultTelegramTimeout = 120 * time.Second

// TelegramBot is the subset of the bot API the provider needs. It exists so
// tests can substitute a fake.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewTelegramBot connects the real bot API.
func NewTelegramBot(token string) (TelegramBot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("approval: telegram token is required")
	}
	return tgbotapi.NewBotAPI(token)
}

// Telegram asks for approval through a chat message with inline
// approve/deny buttons. No answer within the deadline means denial.
type Telegram struct {
	bot     TelegramBot
	chatID  int64
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *Response
	stop    chan struct{}
	stopped sync.Once
}

// NewTelegram builds the provider and starts consuming bot updates.
func NewTelegram(bot TelegramBot, chatID int64, timeout time.Duration) *Telegram {
	if timeout <= 0 {
		timeout = defaultTelegramTimeout
	}
	p := &Telegram{
		bot:     bot,
		chatID:  chatID,
		timeout: timeout,
		pending: make(map[string]chan *Response),
		stop:    make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Close stops the update loop. Outstanding requests resolve to denial when
// their deadline passes.
func (p *Telegram) Close() {
	p.stopped.Do(func() {
		close(p.stop)
		p.bot.StopReceivingUpdates()
	})
}

// RequestApproval sends the prompt and waits for a button callback.
func (p *Telegram) RequestApproval(ctx context.Context, req *Request) (*Response, error) {
	id := uuid.NewString()
	ch := make(chan *Response, 1)

	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	text := fmt.Sprintf("Tool call requires approval\ntool: %s\nrisk: %s",
		req.ToolName, req.RiskLevel)
	if req.Description != "" {
		text += "\n" + req.Description
	}
	if summary := summarizeArgs(req.Arguments); summary != "" {
		text += "\nargs: " + summary
	}

	msg := tgbotapi.NewMessage(p.chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", "approve:"+id),
			tgbotapi.NewInlineKeyboardButtonData("Deny", "deny:"+id),
		),
	)
	if _, err := p.bot.Send(msg); err != nil {
		return Denied("telegram: send failed: " + err.Error()), nil
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return Denied("telegram: approval timed out"), nil
	case <-ctx.Done():
		return Denied("telegram: approval cancelled: " + ctx.Err().Error()), nil
	case <-p.stop:
		return Denied("telegram: provider closed"), nil
	}
}

func (p *Telegram) dispatch() {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := p.bot.GetUpdatesChan(cfg)

	for {
		select {
		case <-p.stop:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			cb := update.CallbackQuery
			if cb == nil {
				continue
			}
			action, id, found := strings.Cut(cb.Data, ":")
			if !found {
				continue
			}

			p.mu.Lock()
			ch, pending := p.pending[id]
			p.mu.Unlock()
			if !pending {
				continue
			}

			who := ""
			if cb.From != nil {
				who = " by @" + cb.From.UserName
			}
			var resp *Response
			switch action {
			case "approve":
				resp = Approved("approved via telegram" + who)
			default:
				resp = Denied("denied via telegram" + who)
			}

			select {
			case ch <- resp:
			default:
			}
			// Acknowledge so the client stops the spinner; best-effort.
			p.bot.Request(tgbotapi.NewCallback(cb.ID, "recorded")) //nolint:errcheck
		}
	}
}
