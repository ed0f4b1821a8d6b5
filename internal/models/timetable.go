package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableKind distinguishes core generations from lab rotations.
type TimetableKind string

const (
	TimetableKindCore TimetableKind = "CORE"
	TimetableKindLab  TimetableKind = "LAB"
)

// TimetableAudience identifies who a stored view is rendered for.
type TimetableAudience string

const (
	TimetableAudienceStudent TimetableAudience = "STUDENT"
	TimetableAudienceTeacher TimetableAudience = "TEACHER"
)

// TimetableGeneration is one successful solver run with its request and full result.
type TimetableGeneration struct {
	ID          string         `db:"id" json:"id"`
	Kind        TimetableKind  `db:"kind" json:"kind"`
	RequestHash string         `db:"request_hash" json:"request_hash"`
	Request     types.JSONText `db:"request" json:"request"`
	Result      types.JSONText `db:"result" json:"result"`
	Units       int            `db:"units" json:"units"`
	Backtracks  int            `db:"backtracks" json:"backtracks"`
	DurationMS  int64          `db:"duration_ms" json:"duration_ms"`
	CreatedBy   *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// TimetableView is a rendered table of one section or one teacher, stored for dashboards.
// Student views carry Year and Section; teacher views carry Teacher.
type TimetableView struct {
	ID           string            `db:"id" json:"id"`
	GenerationID string            `db:"generation_id" json:"generation_id"`
	Audience     TimetableAudience `db:"audience" json:"audience"`
	Year         int               `db:"year" json:"year"`
	Section      string            `db:"section" json:"section"`
	Teacher      string            `db:"teacher" json:"teacher"`
	TableData    types.JSONText    `db:"table_data" json:"table_data"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// TimetablePublication is the unit of work handed to the publisher queue.
type TimetablePublication struct {
	Generation TimetableGeneration
	Views      []TimetableView
}
