package model

import "time"

// Exception is a persisted system error, written by the agents when a cycle
// or a message fails unexpectedly.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "execution"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "executor"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "HandleSignal"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// JSON encoded context
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
