package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task represents a single to-do item owned by a user. OwnerID is set at
// creation and never changes afterwards.
type Task struct {
	ID          uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:char(36);not null;index"`
	Name        string         `json:"name" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text;not null"`
	DueDate     time.Time      `json:"due_date" gorm:"not null"`
	Priority    Priority       `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	Completed   bool           `json:"completed" gorm:"default:false"`
	FilePath    string         `json:"file,omitempty" gorm:"size:512"`
	FileName    string         `json:"file_name,omitempty" gorm:"size:255"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Owner User `json:"-" gorm:"foreignKey:OwnerID"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
