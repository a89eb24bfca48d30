package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditCode string

const (
	AuditPriceUnavailable     AuditCode = "price_unavailable"
	AuditOrderCancelledSkip   AuditCode = "order_cancelled_skip"
	AuditStalePosition        AuditCode = "stale_position"
	AuditSymbolLockContention AuditCode = "symbol_lock_contention"
	AuditProviderMissing      AuditCode = "provider_missing"
	AuditBotDisabled          AuditCode = "bot_disabled"
	AuditOrderFilled          AuditCode = "order_filled"
	AuditOrderRejected        AuditCode = "order_rejected"
	AuditUnhandledException   AuditCode = "unhandled_exception"
	AuditTrailingStopMoved    AuditCode = "trailing_stop_moved"
	AuditTakeProfitRatchet    AuditCode = "take_profit_ratchet"
)

// AuditEntry — единица журнала. CorrelationID группирует записи одной
// попытки исполнения; Actor — identity процесса, породившего запись.
type AuditEntry struct {
	ID            string
	CorrelationID string
	UserID        string
	Actor         string
	TargetID      string
	Code          AuditCode
	Message       string
	Metadata      map[string]any
	CreatedAt     time.Time
}

func NewAudit(code AuditCode, message string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.NewString(),
		Code:      code,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

func (a *AuditEntry) WithCorrelation(id string) *AuditEntry {
	a.CorrelationID = id
	return a
}

func (a *AuditEntry) WithTarget(id string) *AuditEntry {
	a.TargetID = id
	return a
}

func (a *AuditEntry) WithUser(id string) *AuditEntry {
	a.UserID = id
	return a
}

func (a *AuditEntry) WithActor(actor string) *AuditEntry {
	a.Actor = actor
	return a
}

func (a *AuditEntry) WithMeta(key string, value any) *AuditEntry {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
	return a
}
