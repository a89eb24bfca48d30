package queue

import "context"

// OrderMessage — payload именованной очереди бота: один триггернутый ордер.
type OrderMessage struct {
	OrderID string `json:"order_id"`
}

// ControlMessage — payload каналов register/unregister.
type ControlMessage struct {
	BotID string `json:"bot_id"`
}

// ChannelUnregister — fan-out канал: "кто бы ни владел ботом — отпусти его".
const ChannelUnregister = "bot_unregister"

// RegisterChannel — прямой канал конкретного менеджера.
func RegisterChannel(manager string) string {
	return "bot_register_" + manager
}

type Publisher interface {
	Publish(ctx context.Context, botID string, msg OrderMessage) error
}

// Consumer блокируется до отмены ctx; handler вызывается по одному сообщению.
// Ошибка handler логируется, но не останавливает поток.
type Consumer interface {
	Consume(ctx context.Context, botID string, handler func(context.Context, OrderMessage) error) error
}

type ControlBus interface {
	Broadcast(ctx context.Context, channel string, msg ControlMessage) error
	Listen(ctx context.Context, channel string, handler func(context.Context, ControlMessage)) error
}
