package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

// Alert records one breached health threshold
type Alert struct {
	ID        string    `json:"id" db:"id"`
	Metric    string    `json:"metric" db:"metric"`
	Value     float64   `json:"value" db:"value"`
	Threshold float64   `json:"threshold" db:"threshold"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *Alert) error
	GetRecentAlerts(ctx context.Context, limit int) ([]*Alert, error)
}

type postgresAlertRepository struct {
	db *sqlx.DB
}

func NewPostgresAlertRepository(db *sqlx.DB) AlertRepository {
	return &postgresAlertRepository{db: db}
}

func (r *postgresAlertRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	query := `
        INSERT INTO performance_alerts (id, metric, value, threshold, message, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Metric, alert.Value, alert.Threshold, alert.Message, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create alert: %w", database.Classify(err))
	}
	return nil
}

func (r *postgresAlertRepository) GetRecentAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	query := `
        SELECT id, metric, value, threshold, message, created_at
        FROM performance_alerts
        ORDER BY created_at DESC
        LIMIT $1
    `

	alerts := []*Alert{}
	if err := r.db.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, fmt.Errorf("recent alerts: %w", database.Classify(err))
	}
	return alerts, nil
}

// MemoryAlertRepository keeps alerts in insertion order
type MemoryAlertRepository struct {
	mu     sync.Mutex
	alerts []*Alert
}

func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{}
}

func (r *MemoryAlertRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *alert
	r.alerts = append(r.alerts, &a)
	return nil
}

func (r *MemoryAlertRepository) GetRecentAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alerts := []*Alert{}
	for i := len(r.alerts) - 1; i >= 0 && (limit <= 0 || len(alerts) < limit); i-- {
		a := *r.alerts[i]
		alerts = append(alerts, &a)
	}
	return alerts, nil
}
