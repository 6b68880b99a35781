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
	apperrors "maintenance-system/pkg/errors"
)

const (
	userTable  = "users"
	userFields = "id, full_name, email, phone, role, created_at"
)

type UserRepositoryInterface interface {
	FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error)
	FindByEmail(ctx context.Context, tx pgx.Tx, email string) (*entities.User, error)
	Create(ctx context.Context, tx pgx.Tx, u *entities.User) error
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func (r *UserRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования users: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) findOne(ctx context.Context, tx pgx.Tx, where sq.Eq) (*entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(userFields).From(userTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса users: %w", err)
	}
	return scanUser(r.getQuerier(tx).QueryRow(ctx, query, args...))
}

func (r *UserRepository) FindByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	return r.findOne(ctx, tx, sq.Eq{"id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, tx pgx.Tx, email string) (*entities.User, error) {
	return r.findOne(ctx, tx, sq.Eq{"email": email})
}

func (r *UserRepository) Create(ctx context.Context, tx pgx.Tx, u *entities.User) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(userTable).
		Columns("full_name", "email", "phone", "role").
		Values(u.FullName, u.Email, u.Phone, u.Role).
		Suffix("RETURNING " + userFields).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}
	created, err := scanUser(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("пользователь с email %s уже существует: %w", u.Email, apperrors.ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	*u = *created
	return nil
}
