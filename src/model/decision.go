package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the audit record a signal generator writes when it emits
// (or, for research, analyses) a symbol.
type Decision struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Agent      string          `gorm:"size:50;not null;index" json:"agent"`
	Symbol     string          `gorm:"size:50;index" json:"symbol"`
	Decision   string          `gorm:"type:text;not null" json:"decision"`
	Reasoning  string          `gorm:"type:text" json:"reasoning"`
	Confidence decimal.Decimal `gorm:"type:double precision;not null" json:"confidence"`
	Executed   bool            `gorm:"not null;default:false" json:"executed"`
	Timestamp  time.Time       `gorm:"not null;index" json:"timestamp"`
}

func (Decision) TableName() string {
	return "agent_decisions"
}
