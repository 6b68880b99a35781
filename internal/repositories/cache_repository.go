package repositories

import (
	"context"
	"time"
)

// CacheRepositoryInterface - то, что нужно от Redis: блокировка прогона автоназначения.
type CacheRepositoryInterface interface {
	// SetNX ставит ключ, только если его нет. false - ключ уже занят.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// DelIfEquals удаляет ключ, только если в нём лежит ожидаемое значение.
	DelIfEquals(ctx context.Context, key, expected string) (bool, error)
}
