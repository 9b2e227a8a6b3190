package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/shorty/internal/models"
)

type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.ClickEvent) error
	FindByShortCode(ctx context.Context, shortCode string) ([]*models.ClickEvent, error)
	GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error)
	DeleteByShortCode(ctx context.Context, shortCode string) error
	DeleteAll(ctx context.Context) error
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.ClickEvent) error {
	query := `
		INSERT INTO url_clicks (short_code, visitor_id, device_type, browser, os, ip_address, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		click.ShortCode,
		click.VisitorID,
		click.DeviceType,
		click.Browser,
		click.OS,
		click.IPAddress,
		click.ClickedAt,
	).Scan(&click.ID)

	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) FindByShortCode(ctx context.Context, shortCode string) ([]*models.ClickEvent, error) {
	query := `
		SELECT id, short_code, visitor_id, device_type, browser, os, ip_address, clicked_at
		FROM url_clicks
		WHERE short_code = $1
		ORDER BY clicked_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, shortCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get clicks: %w", err)
	}
	defer rows.Close()

	clicks := make([]*models.ClickEvent, 0)
	for rows.Next() {
		click := &models.ClickEvent{}
		if err := rows.Scan(
			&click.ID,
			&click.ShortCode,
			&click.VisitorID,
			&click.DeviceType,
			&click.Browser,
			&click.OS,
			&click.IPAddress,
			&click.ClickedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

func (r *clickRepository) GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error) {
	query := `
		SELECT
			TO_CHAR(DATE(clicked_at), 'YYYY-MM-DD') AS date,
			COUNT(*) AS clicks
		FROM url_clicks
		WHERE short_code = $1
			AND clicked_at >= NOW() - INTERVAL '1 day' * $2
		GROUP BY DATE(clicked_at)
		ORDER BY DATE(clicked_at) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, shortCode, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.DailyClickStats, 0)
	for rows.Next() {
		var dailyStat models.DailyClickStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}

func (r *clickRepository) DeleteByShortCode(ctx context.Context, shortCode string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM url_clicks WHERE short_code = $1`, shortCode); err != nil {
		return fmt.Errorf("failed to delete clicks: %w", err)
	}
	return nil
}

func (r *clickRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM url_clicks`); err != nil {
		return fmt.Errorf("failed to delete clicks: %w", err)
	}
	return nil
}
