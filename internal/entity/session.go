package entity

import (
	"database/sql"
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

type ProctorSession struct {
	ID          string        `db:"id"`
	InterviewID string        `db:"interview_id"`
	UserID      string        `db:"user_id"`
	Status      SessionStatus `db:"status"`
	StartTime   time.Time     `db:"start_time"`
	EndTime     sql.NullTime  `db:"end_time"`
}

type ProctorFlag struct {
	ID         string    `db:"id"`
	SessionID  string    `db:"session_id"`
	FlagType   string    `db:"flag_type"`
	Confidence float64   `db:"confidence_score"`
	Source     string    `db:"source"`
	Details    string    `db:"details"`
	CreatedAt  time.Time `db:"created_at"`
}
