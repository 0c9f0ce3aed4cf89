package postgres

import (
	"database/sql"
	"time"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
)

// statusEntity is the database persistence model for one scraped status row.
// Grounded on the teacher backend's persistence entities (db-tagged structs
// with a ToDomain converter handling nullable columns explicitly).
type statusEntity struct {
	MountainID  string         `db:"mountain_id"`
	IsOpen      bool           `db:"is_open"`
	PercentOpen sql.NullInt64  `db:"percent_open"`
	LiftsOpen   int            `db:"lifts_open"`
	LiftsTotal  int            `db:"lifts_total"`
	RunsOpen    int            `db:"runs_open"`
	RunsTotal   int            `db:"runs_total"`
	AcresOpen   sql.NullInt64  `db:"acres_open"`
	AcresTotal  sql.NullInt64  `db:"acres_total"`
	Message     sql.NullString `db:"message"`
	SourceURL   string         `db:"source_url"`
	DataURL     string         `db:"data_url"`
	ScrapedAt   time.Time      `db:"scraped_at"`
}

func entityFromStatus(s models.ScrapedStatus) statusEntity {
	e := statusEntity{
		MountainID: s.MountainID,
		IsOpen:     s.IsOpen,
		LiftsOpen:  s.LiftsOpen,
		LiftsTotal: s.LiftsTotal,
		RunsOpen:   s.RunsOpen,
		RunsTotal:  s.RunsTotal,
		SourceURL:  s.SourceURL,
		DataURL:    s.DataURL,
		ScrapedAt:  s.ScrapedAt,
	}
	if s.PercentOpen != nil {
		e.PercentOpen = sql.NullInt64{Int64: int64(*s.PercentOpen), Valid: true}
	}
	if s.AcresOpen != nil {
		e.AcresOpen = sql.NullInt64{Int64: int64(*s.AcresOpen), Valid: true}
	}
	if s.AcresTotal != nil {
		e.AcresTotal = sql.NullInt64{Int64: int64(*s.AcresTotal), Valid: true}
	}
	if s.Message != "" {
		e.Message = sql.NullString{String: s.Message, Valid: true}
	}
	return e
}

// toDomain converts the database entity to the domain ScrapedStatus.
func (e statusEntity) toDomain() models.ScrapedStatus {
	s := models.ScrapedStatus{
		MountainID: e.MountainID,
		IsOpen:     e.IsOpen,
		LiftsOpen:  e.LiftsOpen,
		LiftsTotal: e.LiftsTotal,
		RunsOpen:   e.RunsOpen,
		RunsTotal:  e.RunsTotal,
		SourceURL:  e.SourceURL,
		DataURL:    e.DataURL,
		ScrapedAt:  e.ScrapedAt,
	}
	if e.PercentOpen.Valid {
		v := int(e.PercentOpen.Int64)
		s.PercentOpen = &v
	}
	if e.AcresOpen.Valid {
		v := int(e.AcresOpen.Int64)
		s.AcresOpen = &v
	}
	if e.AcresTotal.Valid {
		v := int(e.AcresTotal.Int64)
		s.AcresTotal = &v
	}
	if e.Message.Valid {
		s.Message = e.Message.String
	}
	return s
}

// runEntity is the database persistence model for one run audit row.
type runEntity struct {
	RunID           string         `db:"run_id"`
	TriggeredBy     string         `db:"triggered_by"`
	TotalMountains  int            `db:"total_mountains"`
	SuccessfulCount int            `db:"successful_count"`
	FailedCount     int            `db:"failed_count"`
	DurationMS      int64          `db:"duration_ms"`
	Status          string         `db:"status"`
	StartedAt       time.Time      `db:"started_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	ErrorMessage    sql.NullString `db:"error_message"`
}

func (e runEntity) toDomain() models.RunRecord {
	r := models.RunRecord{
		RunID:           e.RunID,
		TriggeredBy:     e.TriggeredBy,
		TotalMountains:  e.TotalMountains,
		SuccessfulCount: e.SuccessfulCount,
		FailedCount:     e.FailedCount,
		DurationMS:      e.DurationMS,
		Status:          models.RunStatus(e.Status),
		StartedAt:       e.StartedAt,
	}
	if e.CompletedAt.Valid {
		r.CompletedAt = &e.CompletedAt.Time
	}
	if e.ErrorMessage.Valid {
		r.ErrorMessage = e.ErrorMessage.String
	}
	return r
}
