package telegram_api

import (
	"fmt"
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// BotClient представляет собой обертку для Telegram Bot API.
// Используется только для исходящих уведомлений водителям, входящие обновления не читаются.
// BotClient represents a wrapper for the Telegram Bot API.
type BotClient struct {
	api   *tgbotapi.BotAPI
	Debug bool
}

// NewBotClient инициализирует Telegram бота.
// token - API токен бота, debug - флаг режима отладки.
func NewBotClient(token string, debug bool) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("токен Telegram API не предоставлен")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram Bot API: %w", err)
	}
	api.Debug = debug

	log.Printf("Авторизован как аккаунт %s", api.Self.UserName)
	return &BotClient{api: api, Debug: debug}, nil
}

// Send отправляет сообщение через BotClient.
// Send sends a message via BotClient.
func (bc *BotClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if bc == nil || bc.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("BotClient или его API не инициализирован")
	}
	if bc.Debug {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			log.Printf("Отправка сообщения: ChatID=%d, Text='%.50s...'", msg.ChatID, msg.Text)
		} else {
			log.Printf("Отправка/запрос типа %T", c)
		}
	}
	return bc.api.Send(c)
}

// SendText отправляет текст в Markdown в указанный чат.
func (bc *BotClient) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bc.Send(msg); err != nil {
		log.Printf("SendText: ошибка отправки сообщения в чат %d: %v", chatID, err)
		return err
	}
	return nil
}
