package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrURLNotFound = errors.New("url not found")
	ErrCodeExists  = errors.New("short code already exists")
)

const uniqueViolationCode = "23505"

type URLRepository interface {
	Insert(ctx context.Context, record *models.URLRecord) error
	FindByShortCode(ctx context.Context, code string) (*models.URLRecord, error)
	IncrementVisitCount(ctx context.Context, code string) error
	DeleteByShortCode(ctx context.Context, code string) error
	ListAll(ctx context.Context) ([]*models.URLRecord, error)
	DeleteAll(ctx context.Context) error
}

type urlRepository struct {
	db *PostgresDB
}

func NewURLRepository(db *PostgresDB) URLRepository {
	return &urlRepository{db: db}
}

const urlColumns = `id, short_code, original_url, visit_count, created_at, expires_at, utm_params`

func (r *urlRepository) Insert(ctx context.Context, record *models.URLRecord) error {
	query := `
		INSERT INTO urls (short_code, original_url, visit_count, created_at, expires_at, utm_params)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		record.ShortCode,
		record.OriginalURL,
		record.VisitCount,
		record.CreatedAt,
		record.ExpiresAt,
		record.UTMParams,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to insert url: %w", err)
	}

	return nil
}

// FindByShortCode возвращает запись независимо от срока действия:
// истёкшие записи удаляет сервис
func (r *urlRepository) FindByShortCode(ctx context.Context, code string) (*models.URLRecord, error) {
	query := `SELECT ` + urlColumns + ` FROM urls WHERE short_code = $1`

	record, err := scanURL(r.db.Pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to get url: %w", err)
	}

	return record, nil
}

func (r *urlRepository) IncrementVisitCount(ctx context.Context, code string) error {
	query := `UPDATE urls SET visit_count = visit_count + 1, updated_at = NOW() WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to increment visit count: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	return nil
}

func (r *urlRepository) DeleteByShortCode(ctx context.Context, code string) error {
	query := `DELETE FROM urls WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete url: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	return nil
}

func (r *urlRepository) ListAll(ctx context.Context) ([]*models.URLRecord, error) {
	query := `SELECT ` + urlColumns + ` FROM urls ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	records := make([]*models.URLRecord, 0)
	for rows.Next() {
		record, err := scanURL(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating urls: %w", err)
	}

	return records, nil
}

func (r *urlRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM urls`); err != nil {
		return fmt.Errorf("failed to delete urls: %w", err)
	}
	return nil
}

func scanURL(row pgx.Row) (*models.URLRecord, error) {
	record := &models.URLRecord{}
	err := row.Scan(
		&record.ID,
		&record.ShortCode,
		&record.OriginalURL,
		&record.VisitCount,
		&record.CreatedAt,
		&record.ExpiresAt,
		&record.UTMParams,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Проверка на нарушение уникальности (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
