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
	taskReportTable  = "task_reports"
	taskReportFields = "id, request_id, technician_id, tools_used, parts_used, time_taken_minutes, success, remarks, created_at"
)

type TaskReportRepositoryInterface interface {
	Create(ctx context.Context, tx pgx.Tx, report *entities.TaskReport) error
	FindByRequestID(ctx context.Context, tx pgx.Tx, requestID uint64) (*entities.TaskReport, error)
}

type taskReportRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTaskReportRepository(storage *pgxpool.Pool, logger *zap.Logger) TaskReportRepositoryInterface {
	return &taskReportRepository{storage: storage, logger: logger}
}

func (r *taskReportRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func scanTaskReport(row pgx.Row) (*entities.TaskReport, error) {
	var rep entities.TaskReport
	err := row.Scan(&rep.ID, &rep.RequestID, &rep.TechnicianID, &rep.ToolsUsed, &rep.PartsUsed,
		&rep.TimeTakenMinutes, &rep.Success, &rep.Remarks, &rep.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования task_reports: %w", err)
	}
	return &rep, nil
}

func (r *taskReportRepository) Create(ctx context.Context, tx pgx.Tx, report *entities.TaskReport) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(taskReportTable).
		Columns("request_id", "technician_id", "tools_used", "parts_used", "time_taken_minutes", "success", "remarks").
		Values(report.RequestID, report.TechnicianID, report.ToolsUsed, report.PartsUsed,
			report.TimeTakenMinutes, report.Success, report.Remarks).
		Suffix("RETURNING " + taskReportFields).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса Create: %w", err)
	}
	created, err := scanTaskReport(r.getQuerier(tx).QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("отчёт по заявке %d уже сдан: %w", report.RequestID, apperrors.ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения отчёта: %w", err)
	}
	*report = *created
	return nil
}

func (r *taskReportRepository) FindByRequestID(ctx context.Context, tx pgx.Tx, requestID uint64) (*entities.TaskReport, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select(taskReportFields).From(taskReportTable).Where(sq.Eq{"request_id": requestID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса FindByRequestID: %w", err)
	}
	return scanTaskReport(r.getQuerier(tx).QueryRow(ctx, query, args...))
}
