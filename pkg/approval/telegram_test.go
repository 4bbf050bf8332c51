package approval

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

// fakeBot answers every approval prompt by pressing one of its buttons.
type fakeBot struct {
	press   string // "approve", "deny", or "" to stay silent
	updates chan tgbotapi.Update

	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	acks []string
}

func newFakeBot(press string) *fakeBot {
	return &fakeBot{press: press, updates: make(chan tgbotapi.Update, 4)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}
	b.mu.Lock()
	b.sent = append(b.sent, msg)
	b.mu.Unlock()

	if b.press == "" {
		return tgbotapi.Message{}, nil
	}

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) == 0 {
		return tgbotapi.Message{}, nil
	}
	for _, btn := range markup.InlineKeyboard[0] {
		if btn.CallbackData == nil || !strings.HasPrefix(*btn.CallbackData, b.press+":") {
			continue
		}
		b.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb1",
			Data: *btn.CallbackData,
			From: &tgbotapi.User{UserName: "operator"},
		}}
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		b.mu.Lock()
		b.acks = append(b.acks, cb.CallbackQueryID)
		b.mu.Unlock()
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {}

func TestTelegram_Approve(t *testing.T) {
	bot := newFakeBot("approve")
	p := NewTelegram(bot, 42, 5*time.Second)
	defer p.Close()

	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.True(t, resp.Approved)
	require.Contains(t, resp.Reason, "@operator")

	bot.mu.Lock()
	defer bot.mu.Unlock()
	require.Len(t, bot.sent, 1)
	require.Equal(t, int64(42), bot.sent[0].ChatID)
	require.Contains(t, bot.sent[0].Text, "bash")
}

func TestTelegram_Deny(t *testing.T) {
	bot := newFakeBot("deny")
	p := NewTelegram(bot, 42, 5*time.Second)
	defer p.Close()

	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestTelegram_TimeoutDenies(t *testing.T) {
	bot := newFakeBot("")
	p := NewTelegram(bot, 42, 50*time.Millisecond)
	defer p.Close()

	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
	require.Contains(t, resp.Reason, "timed out")
}

func TestTelegram_CancelledContextDenies(t *testing.T) {
	bot := newFakeBot("")
	p := NewTelegram(bot, 42, 5*time.Second)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := p.RequestApproval(ctx, sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestTelegram_ClosedProviderDenies(t *testing.T) {
	bot := newFakeBot("")
	p := NewTelegram(bot, 42, 5*time.Second)
	p.Close()

	resp, err := p.RequestApproval(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.False(t, resp.Approved)
}

func TestNewTelegramBot_RequiresToken(t *testing.T) {
	_, err := NewTelegramBot("  ")
	require.Error(t, err)
}
