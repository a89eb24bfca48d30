package models

import "time"

type StopLossStrategy string

const (
	StopLossFixed    StopLossStrategy = "fixed"
	StopLossTrailing StopLossStrategy = "trailing"
)

// TakeProfitBase — от чего считать новый стоп после сработавшего тейка,
// когда в цепочке нет предыдущего тейк-ордера.
type TakeProfitBase string

const (
	TakeProfitBaseEntry   TakeProfitBase = "entry"
	TakeProfitBaseAverage TakeProfitBase = "average"
)

// Bot — настроенная пользователем стратегия, привязанная к одному
// аккаунту биржи. ManagedBy — identity воркера, владеющего его очередью.
type Bot struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	Exchange       string `json:"exchange"` // provider tag: binance / paper
	ExchangeID     string `json:"exchange_id"`
	TelegramChatID int64  `json:"telegram_chat_id"`

	IsEnabled bool   `json:"is_enabled"`
	ManagedBy string `json:"managed_by"`

	Leverage int `json:"leverage"`

	StopLossStrategy       StopLossStrategy `json:"stop_loss_strategy"`
	StopLossMarginDistance float64          `json:"stop_loss_margin_distance"` // % от цены входа
	TakeProfitBase         TakeProfitBase   `json:"take_profit_base"`

	Credentials Credentials `json:"credentials"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credentials — типизированные ключи провайдера (вместо динамического
// биндинга настроек по именам полей).
type Credentials struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"passphrase,omitempty"`
	Testnet    bool   `json:"testnet,omitempty"`
}

// TrailingEnabled: трейлим стоп только когда режим trailing и дистанция задана.
func (b *Bot) TrailingEnabled() bool {
	return b.StopLossStrategy == StopLossTrailing && b.StopLossMarginDistance > 0
}

// BotManager — heartbeat-строка identity воркера.
type BotManager struct {
	Name     string
	PingDate time.Time
}
