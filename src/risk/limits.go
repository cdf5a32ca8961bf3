package risk

import (
	"fmt"

	"cryptoagents/src/model"

	"github.com/shopspring/decimal"
)

const (
	RejectDailyLoss   = "daily_loss_limit"
	RejectLowCapital  = "insufficient_capital"
	RejectMaxExposure = "max_exposure"
)

// Rejection explains why a signal failed the portfolio limits.
type Rejection struct {
	Rule   string
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Rule, r.Detail)
}

// CheckLimits applies the portfolio-wide limits to a snapshot. It returns nil
// when a new signal may go through.
func CheckLimits(snap model.RiskSnapshot, cfg Config) *Rejection {
	maxLoss := cfg.MaxDailyLoss.Mul(snap.TotalCapital)
	if snap.DailyPnl.LessThan(maxLoss.Neg()) {
		return &Rejection{
			Rule:   RejectDailyLoss,
			Detail: fmt.Sprintf("daily pnl %s below -%s", snap.DailyPnl.String(), maxLoss.String()),
		}
	}

	minAvailable := cfg.MinCapitalRatio.Mul(cfg.MaxPositionSize.Mul(snap.TotalCapital))
	if snap.AvailableCapital.LessThan(minAvailable) {
		return &Rejection{
			Rule:   RejectLowCapital,
			Detail: fmt.Sprintf("available %s below %s", snap.AvailableCapital.String(), minAvailable.String()),
		}
	}

	maxExposure := cfg.MaxExposureRatio.Mul(snap.TotalCapital)
	if snap.TotalExposure.GreaterThan(maxExposure) {
		return &Rejection{
			Rule:   RejectMaxExposure,
			Detail: fmt.Sprintf("exposure %s above %s", snap.TotalExposure.String(), maxExposure.String()),
		}
	}

	return nil
}

// CurrentSnapshot returns snap, or the initial-capital snapshot when nothing
// has been recorded yet.
func CurrentSnapshot(snap *model.RiskSnapshot, initialCapital decimal.Decimal) model.RiskSnapshot {
	if snap == nil {
		return model.InitialSnapshot(initialCapital)
	}
	return *snap
}
