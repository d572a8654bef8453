package data

import (
	"context"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// FetchOutcomeRow is the GORM model for the fetch_outcomes table.
type FetchOutcomeRow struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	OutcomeID  string    `gorm:"column:outcome_id;type:varchar(36);not null;uniqueIndex"`
	Source     string    `gorm:"column:source;type:varchar(64);not null;index"`
	Capability string    `gorm:"column:capability;type:varchar(64);not null"`
	Kind       string    `gorm:"column:kind;type:varchar(32);not null"`
	HTTPStatus int       `gorm:"column:http_status;default:0"`
	Detail     string    `gorm:"column:detail;type:text"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (FetchOutcomeRow) TableName() string {
	return "fetch_outcomes"
}

// AlertRow is the GORM model for the pipeline_alerts table.
type AlertRow struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	Severity   string    `gorm:"column:severity;type:varchar(16);not null;index"`
	Message    string    `gorm:"column:message;type:text;not null"`
	Source     string    `gorm:"column:source;type:varchar(64)"`
	Component  string    `gorm:"column:component;type:varchar(64);not null"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (AlertRow) TableName() string {
	return "pipeline_alerts"
}

// OutcomeArchiveRepo implements biz.OutcomeArchive: the durable audit trail
// of fetch outcomes and alerts. Writes go through a buffered channel so a
// slow database never stalls the fetch path.
type OutcomeArchiveRepo struct {
	db      *gorm.DB
	rowChan chan any
	logger  *log.Helper
}

// NewOutcomeArchive creates the archive and starts its background writer.
func NewOutcomeArchive(db *gorm.DB, logger log.Logger) (*OutcomeArchiveRepo, func(), error) {
	helper := log.NewHelper(logger)

	if err := db.AutoMigrate(&FetchOutcomeRow{}, &AlertRow{}); err != nil {
		return nil, nil, err
	}

	a := &OutcomeArchiveRepo{
		db:      db,
		rowChan: make(chan any, 1000), // buffer to prevent blocking
		logger:  helper,
	}
	go a.start()

	cleanup := func() {
		helper.Info("closing outcome archive")
		close(a.rowChan)
	}
	return a, cleanup, nil
}

// start drains the row channel into MySQL.
func (a *OutcomeArchiveRepo) start() {
	for row := range a.rowChan {
		ctx := context.Background()
		if err := a.db.WithContext(ctx).Create(row).Error; err != nil {
			a.logger.Errorw("failed to write archive row", "error", err)
		}
	}
}

// ArchiveOutcome queues one fetch outcome for persistence. On a full buffer
// the outcome is dropped with a warning; archival is best-effort.
func (a *OutcomeArchiveRepo) ArchiveOutcome(ctx context.Context, outcome *model.FetchOutcome) {
	row := &FetchOutcomeRow{
		OutcomeID:  outcome.ID,
		Source:     outcome.Source.String(),
		Capability: outcome.Capability.String(),
		Kind:       string(outcome.Kind),
		HTTPStatus: outcome.HTTPStatus,
		Detail:     outcome.Detail,
		OccurredAt: outcome.Timestamp,
	}

	select {
	case a.rowChan <- row:
	default:
		a.logger.Warnw("archive channel full, dropping outcome",
			"source", outcome.Source,
			"kind", outcome.Kind)
	}
}

// ArchiveAlert queues one alert for persistence.
func (a *OutcomeArchiveRepo) ArchiveAlert(ctx context.Context, alert *model.Alert) {
	row := &AlertRow{
		Severity:   string(alert.Severity),
		Message:    alert.Message,
		Source:     alert.Source.String(),
		Component:  alert.Component,
		OccurredAt: alert.Timestamp,
	}

	select {
	case a.rowChan <- row:
	default:
		a.logger.Warnw("archive channel full, dropping alert",
			"severity", alert.Severity,
			"component", alert.Component)
	}
}

// PurgeBefore deletes archived outcomes and alerts older than the cutoff and
// returns the number of rows removed. Backs the retention cleanup audit.
func (a *OutcomeArchiveRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	outcomes := a.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&FetchOutcomeRow{})
	if outcomes.Error != nil {
		return 0, outcomes.Error
	}

	alerts := a.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&AlertRow{})
	if alerts.Error != nil {
		return outcomes.RowsAffected, alerts.Error
	}

	purged := outcomes.RowsAffected + alerts.RowsAffected
	if purged > 0 {
		a.logger.Infow("archive retention purge completed",
			"cutoff", cutoff,
			"rows", purged)
	}
	return purged, nil
}
