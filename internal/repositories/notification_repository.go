package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"maintenance-system/internal/entities"
	"maintenance-system/pkg/constants"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/types"
)

const (
	notificationTable  = "notifications"
	notificationFields = "id, recipient_role, recipient_id, message, status, created_at"
)

type NotificationRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, n *entities.Notification) error
	ListForRecipient(ctx context.Context, role constants.Role, recipientID uint64, filter types.Filter) ([]entities.Notification, uint64, error)
	MarkRead(ctx context.Context, id uint64, role constants.Role, recipientID uint64) error
}

type notificationRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewNotificationRepository(storage *pgxpool.Pool, logger *zap.Logger) NotificationRepositoryInterface {
	return &notificationRepository{storage: storage, logger: logger}
}

func (r *notificationRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanNotification(row pgx.Row) (*entities.Notification, error) {
	var n entities.Notification
	if err := row.Scan(&n.ID, &n.RecipientRole, &n.RecipientID, &n.Message, &n.Status, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования notifications: %w", err)
	}
	return &n, nil
}

// recipientCondition - что видит получатель. Админ видит и общий канал (recipient_id IS NULL).
func recipientCondition(role constants.Role, recipientID uint64) sq.Sqlizer {
	if role == constants.RoleAdmin {
		return sq.And{
			sq.Eq{"recipient_role": role},
			sq.Or{sq.Eq{"recipient_id": nil}, sq.Eq{"recipient_id": recipientID}},
		}
	}
	return sq.Eq{"recipient_role": role, "recipient_id": recipientID}
}

// Create - содержимое уведомления после записи не меняется.
func (r *notificationRepository) Create(ctx context.Context, tx pgx.Tx, n *entities.Notification) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(notificationTable).
		Columns("recipient_role", "recipient_id", "message", "status").
		Values(n.RecipientRole, n.RecipientID, n.Message, constants.NotificationUnread).
		Suffix("RETURNING " + notificationFields).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}
	created, err := scanNotification(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		return fmt.Errorf("ошибка создания уведомления: %w", err)
	}
	*n = *created
	return nil
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, role constants.Role, recipientID uint64, filter types.Filter) ([]entities.Notification, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	where := sq.And{recipientCondition(role, recipientID)}
	if status, ok := filter.Filter["status"]; ok {
		where = append(where, sq.Eq{"status": status})
	}

	countQuery, countArgs, err := psql.Select("COUNT(id)").From(notificationTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL count: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения count: %w", err)
	}
	if total == 0 {
		return []entities.Notification{}, 0, nil
	}

	builder := psql.Select(notificationFields).From(notificationTable).Where(where).OrderBy("created_at DESC", "id DESC")
	if filter.WithPagination && filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки SQL select: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения select: %w", err)
	}
	defer rows.Close()

	list := make([]entities.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *n)
	}
	return list, total, rows.Err()
}

// MarkRead - единственное изменение уведомления. Чужое уведомление выглядит как несуществующее.
func (r *notificationRepository) MarkRead(ctx context.Context, id uint64, role constants.Role, recipientID uint64) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(notificationTable).
		Set("status", constants.NotificationRead).
		Where(sq.Eq{"id": id}).
		Where(recipientCondition(role, recipientID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса MarkRead: %w", err)
	}
	result, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления уведомления: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
