// Package domain contains the persisted record of reconciliation runs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run records the outcome of one reconciliation run.
type Run struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Status        Status       `gorm:"type:text;not null"`
	Platforms     string       `gorm:"type:text;not null"`
	StartedAt     time.Time    `gorm:"not null"`
	FinishedAt    time.Time    `gorm:"not null"`
	Orders        int          `gorm:"not null"`
	Rows          int          `gorm:"not null"`
	DroppedUnits  int          `gorm:"not null"`
	Discrepancies int          `gorm:"not null"`
	Overshoots    int          `gorm:"not null"`
	Checksum      string       `gorm:"type:text;not null;index"`
	DropTally     datatypes.JSONMap
	Error         string `gorm:"type:text"`
}

// TableName sets the database table name.
func (Run) TableName() string { return "recon_runs" }

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
