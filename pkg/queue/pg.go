package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lever_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG — очередь поверх postgres: durable-таблица order_queue, клейм через
// FOR UPDATE SKIP LOCKED, пробуждение через LISTEN/NOTIFY. Контрольные
// каналы — чистый NOTIFY (не durable, для них это ок).
type PG struct {
	pool      *pgxpool.Pool
	pollEvery time.Duration
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{
		pool:      pool,
		pollEvery: 5 * time.Second,
	}
}

func orderChannel(botID string) string {
	return "order_queue_" + strings.ReplaceAll(botID, "-", "_")
}

func (q *PG) Publish(ctx context.Context, botID string, msg OrderMessage) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("queue.Publish: %w", err)
		}
	}()

	payload, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.pool.Exec(ctx,
		`INSERT INTO order_queue (id, bot_id, payload, created_at) VALUES ($1, $2, $3, now())`,
		uuid.NewString(), botID, payload,
	)
	if err != nil {
		return err
	}
	_, err = q.pool.Exec(ctx, `SELECT pg_notify($1, '')`, orderChannel(botID))
	return err
}

// Consume держит dedicated-соединение под LISTEN и крутит claim-цикл.
// Возвращается только по отмене ctx.
func (q *PG) Consume(ctx context.Context, botID string, handler func(context.Context, OrderMessage) error) error {
	conn, err := q.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("queue.Consume acquire: %w", err)
	}
	defer conn.Release()

	listen := "LISTEN " + pgx.Identifier{orderChannel(botID)}.Sanitize()
	if _, err := conn.Exec(ctx, listen); err != nil {
		return fmt.Errorf("queue.Consume listen: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, ok, err := q.claim(ctx, botID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("queue: claim bot=%s: %v", botID, err)
			time.Sleep(time.Second)
			continue
		}
		if ok {
			if err := handler(ctx, msg); err != nil {
				logger.Error("queue: handler bot=%s order=%s: %v", botID, msg.OrderID, err)
			}
			continue
		}

		// пусто — ждём notify, но не дольше pollEvery (notify мог потеряться)
		waitCtx, cancel := context.WithTimeout(ctx, q.pollEvery)
		_, err = conn.Conn().WaitForNotification(waitCtx)
		cancel()
		if err != nil && ctx.Err() != nil {
			return nil
		}
	}
}

// claim атомарно забирает самое старое сообщение бота. Доставка at-most-once:
// повторной доставки нет, неудачное исполнение требует нового триггера.
func (q *PG) claim(ctx context.Context, botID string) (OrderMessage, bool, error) {
	var payload []byte
	err := q.pool.QueryRow(ctx, `
		DELETE FROM order_queue
		WHERE id = (
			SELECT id FROM order_queue
			WHERE bot_id = $1
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING payload`,
		botID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return OrderMessage{}, false, nil
	}
	if err != nil {
		return OrderMessage{}, false, err
	}

	var msg OrderMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		return OrderMessage{}, false, err
	}
	return msg, true, nil
}

func (q *PG) Broadcast(ctx context.Context, channel string, msg ControlMessage) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue.Broadcast: %w", err)
	}
	_, err = q.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload))
	if err != nil {
		return fmt.Errorf("queue.Broadcast: %w", err)
	}
	return nil
}

func (q *PG) Listen(ctx context.Context, channel string, handler func(context.Context, ControlMessage)) error {
	conn, err := q.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("queue.Listen acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("queue.Listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("queue: wait notification %s: %v", channel, err)
			time.Sleep(time.Second)
			continue
		}

		var msg ControlMessage
		if err := sonic.Unmarshal([]byte(n.Payload), &msg); err != nil {
			logger.Error("queue: bad control payload on %s: %v", channel, err)
			continue
		}
		handler(ctx, msg)
	}
}
