package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"maintenance-system/internal/repositories"
	apperrors "maintenance-system/pkg/errors"
)

// runWithCASRetry выполняет переход в транзакции и повторяет его целиком,
// если условное обновление не прошло из-за параллельной записи.
func runWithCASRetry(ctx context.Context, txManager repositories.TxManagerInterface, retries int, logger *zap.Logger, op string, fn func(tx pgx.Tx) error) error {
	if retries < 1 {
		retries = 1
	}
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		err = txManager.RunInTransaction(ctx, fn)
		if !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		logger.Warn("Конфликт версий, повторяем переход",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
