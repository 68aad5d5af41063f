package entity

import (
	"time"
)

type Base struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Migration records a versioned migration that has been applied.
type Migration struct {
	Version   string `gorm:"primaryKey"`
	AppliedAt time.Time
}
