package pg

import (
	"context"
	"fmt"

	"lever_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

type Audits struct {
	db DB
}

// NewAudits instance
func NewAudits(db DB) *Audits {
	return &Audits{db: db}
}

func (s *Audits) Add(ctx context.Context, entries ...*models.AuditEntry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Audits.Add: %w", err)
		}
	}()

	if len(entries) == 0 {
		return nil
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, e := range entries {
			var meta []byte
			if e.Metadata != nil {
				meta, err = sonic.Marshal(e.Metadata)
				if err != nil {
					return err
				}
			}
			_, err = tx.Exec(ctxTx, `
				INSERT INTO audits
					(id, correlation_id, user_id, actor, target_id, code, message, metadata, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				e.ID, e.CorrelationID, e.UserID, e.Actor, e.TargetID,
				e.Code, e.Message, meta, e.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
