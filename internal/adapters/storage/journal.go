// Package storage persists the link-event journal with GORM and SQLite.
// The journal records what happened (scans, phase transitions, DHCP
// outcomes); per-network configuration is deliberately not stored.
package storage

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/linkd/internal/core/ports"
)

// EventModel is the GORM model for journal rows.
type EventModel struct {
	ID     string `gorm:"primaryKey"`
	Time   time.Time
	Device string `gorm:"index"`
	Kind   string
	ESSID  string `gorm:"column:essid"`
	Detail string
}

func (EventModel) TableName() string { return "link_events" }

// Journal implements ports.Journal on SQLite.
type Journal struct {
	db      *gorm.DB
	maxRows int
}

// Open creates or opens the journal database. maxRows caps the table; the
// oldest rows are pruned past it.
func Open(path string, maxRows int) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Printf("Warning: otel tracing plugin unavailable: %v", err)
	}
	if err := db.AutoMigrate(&EventModel{}); err != nil {
		return nil, err
	}
	return &Journal{db: db, maxRows: maxRows}, nil
}

// Record appends one event. Failures are logged, never propagated; the
// journal is an observer, not a dependency.
func (j *Journal) Record(ctx context.Context, ev ports.Event) {
	row := EventModel{
		ID:     ev.ID,
		Time:   ev.Time,
		Device: ev.Device,
		Kind:   ev.Kind,
		ESSID:  ev.ESSID,
		Detail: ev.Detail,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Time.IsZero() {
		row.Time = time.Now()
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("journal write failed: %v", err)
		return
	}
	j.prune(ctx)
}

func (j *Journal) prune(ctx context.Context) {
	if j.maxRows <= 0 {
		return
	}
	var count int64
	if err := j.db.WithContext(ctx).Model(&EventModel{}).Count(&count).Error; err != nil {
		return
	}
	if count <= int64(j.maxRows) {
		return
	}
	sub := j.db.Model(&EventModel{}).Select("id").
		Order("time desc").Limit(j.maxRows)
	j.db.WithContext(ctx).Where("id NOT IN (?)", sub).Delete(&EventModel{})
}

// Recent returns the newest n events, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]ports.Event, error) {
	var rows []EventModel
	err := j.db.WithContext(ctx).Order("time desc").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ports.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.Event{
			ID:     row.ID,
			Time:   row.Time,
			Device: row.Device,
			Kind:   row.Kind,
			ESSID:  row.ESSID,
			Detail: row.Detail,
		})
	}
	return out, nil
}
