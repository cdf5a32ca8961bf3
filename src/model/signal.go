package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy   Side = "buy"
	SideSell  Side = "sell"
	SideClose Side = "close"
)

const (
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
)

var ErrInvalidSide = errors.New("invalid signal side")

// ParseSide accepts any casing ("BUY", "Buy", "buy").
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	case SideClose:
		return SideClose, nil
	default:
		return "", ErrInvalidSide
	}
}

// Signal is the JSON message carried on the trading_signals and
// approved_signals channels. It is never persisted.
type Signal struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Confidence decimal.Decimal `json:"confidence"`
	Strategy   string          `json:"strategy"`
	DecisionID *uint           `json:"decision_id,omitempty"`
	PositionID *uint           `json:"position_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewSignal stamps a fresh id and timestamp.
func NewSignal(symbol string, side Side, price, confidence decimal.Decimal, strategy string) Signal {
	return Signal{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		Confidence: confidence,
		Strategy:   strategy,
		Priority:   PriorityNormal,
		Timestamp:  time.Now().UTC(),
	}
}

// NewCloseSignal builds the high-priority exit for an open position.
func NewCloseSignal(p Position, reason string) Signal {
	id := p.ID
	s := NewSignal(p.Symbol, SideClose, p.CurrentPrice, decimal.NewFromInt(100), "risk_manager")
	s.PositionID = &id
	s.Reason = reason
	s.Priority = PriorityHigh
	return s
}
