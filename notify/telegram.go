package notify

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/positioncore/events"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - operator lifecycle notifications
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on bot/telegram.go's TelegramBot: same token/chat-id wiring and
// message-formatting idiom. Generalized from that file's StatsProvider
// (pull-based, queried by the bot's own command loop) to a subscriber that
// drains the engine's events.Bus (push-based) - this core's operator surface
// is read-only, so there is no command loop and no onPause/onResume control
// hook to carry over.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TelegramNotifier forwards exit/exit-failure lifecycle events to a
// Telegram chat.
type TelegramNotifier struct {
	mu      sync.Mutex
	api     *tgbotapi.BotAPI
	chatID  int64
	stopCh  chan struct{}
	running bool
}

// NewTelegramNotifier creates a notifier bound to the given bot token and
// chat id.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 telegram notifier initialized")

	return &TelegramNotifier{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
	}, nil
}

// Run subscribes to bus and forwards events until Stop is called. Intended
// to be started with `go notifier.Run(bus)`.
func (n *TelegramNotifier) Run(bus *events.Bus) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	exited := bus.SubscribeExited()
	failed := bus.SubscribeExitFailed()

	for {
		select {
		case <-n.stopCh:
			return
		case evt, ok := <-exited:
			if !ok {
				return
			}
			n.sendExited(evt)
		case evt, ok := <-failed:
			if !ok {
				return
			}
			n.sendExitFailed(evt)
		}
	}
}

// Stop ends the notifier's Run loop.
func (n *TelegramNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	n.running = false
	close(n.stopCh)
}

func (n *TelegramNotifier) sendExited(evt events.PositionExited) {
	msg := fmt.Sprintf("📊 *Position closed*\n\n`%s` — %s\nKind: *%s*\nExit: `%s`\nP&L: `%s`",
		evt.Position.TokenSymbol,
		evt.Position.Side,
		evt.Exit.ExitKind,
		evt.Exit.ExitPrice.StringFixed(4),
		evt.Exit.ProfitLoss.StringFixed(4),
	)
	n.send(msg)
}

func (n *TelegramNotifier) sendExitFailed(evt events.PositionExitFailed) {
	msg := fmt.Sprintf("🚨 *Exit failed*\n\n`%s` — %s\nTrade: `%s`\nError: %s",
		evt.Position.TokenSymbol,
		evt.Position.Side,
		evt.Position.TradeID,
		evt.Err,
	)
	n.send(msg)
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := n.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("failed to send telegram notification")
	}
}
