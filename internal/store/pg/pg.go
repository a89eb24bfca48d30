// Package pg — репозитории поверх pkg/db (pgx). Ошибки отсутствующих строк
// мапятся в store.ErrNotFound, пустые id — в store.ErrInvalidArgument.
package pg

import "lever_bot/pkg/db"

// DB — то, что нужно сторам от pkg/db.
type DB = db.TxManager
