// Package metrics derives the analytical fields of a closed trade:
// weekday, trading session, risk taken, realized risk:reward and the
// win/loss/breakeven classification. Everything here is pure computation;
// the package does no I/O and never fails on well-formed input.
package metrics

import (
	"math"
	"time"

	"mt5-journal-sync/internal/mt5"
)

// Trading sessions, bucketed by broker-local open hour.
const (
	SessionAsia      = "ASIA"
	SessionFrankfurt = "FRANKFURT"
	SessionLondon    = "LONDON"
	SessionNewYork   = "NEWYORK"
)

// Result classifications.
const (
	ResultBreakeven = "BE"
	ResultStopLoss  = "SL"
	ResultTakeProf  = "TP"
	ResultManual    = "MANUAL"
)

// Config holds the classification thresholds. The broker reports times in
// platform-local time, so TimezoneOffsetHours is applied to every timestamp
// before any date or session derivation.
type Config struct {
	BEThresholdPercent  float64
	SLTolerancePercent  float64
	ContractSize        float64
	TimezoneOffsetHours int
}

// Metrics are the derived fields of a single closed trade. A nil pointer
// means the value is undefined for this trade (e.g. no stop-loss was set,
// so no risk can be computed).
type Metrics struct {
	Weekday       string
	Session       string
	RiskMoney     *float64
	RiskPercent   *float64
	RiskReward    *float64
	Result        string
	ProfitPercent *float64
	Commission    float64

	// Human-facing date strings at corrected time, used for mirroring.
	Date         string
	OpenTimeISO  string
	CloseTimeISO string
}

// Build computes the derived metrics for one trade against a fixed
// starting balance. It is deterministic and total: any well-formed trade
// yields a result, with undefined sub-results left nil.
func Build(trade mt5.Trade, startingBalance float64, cfg Config) Metrics {
	riskMoney := calcRiskMoney(trade.OpenPrice, trade.StopLoss, trade.Volume, cfg.ContractSize)
	riskPercent := round2Ptr(calcRiskPercent(riskMoney, startingBalance))
	profitPercent := calcProfitPercent(trade.Profit, startingBalance)
	result := classify(trade.Profit, riskMoney, profitPercent, cfg)
	riskReward := round2Ptr(calcRiskReward(trade.Profit, riskMoney, result))

	openTime := correctedTime(trade.OpenTime, cfg.TimezoneOffsetHours)

	m := Metrics{
		Weekday:       openTime.Weekday().String(),
		Session:       sessionForHour(openTime.Hour()),
		RiskMoney:     riskMoney,
		RiskPercent:   riskPercent,
		RiskReward:    riskReward,
		Result:        result,
		ProfitPercent: profitPercent,
		Commission:    round2(trade.Commission),
		Date:          openTime.Format("2006-01-02"),
		OpenTimeISO:   openTime.Format(time.RFC3339),
	}
	if trade.CloseTime != 0 {
		m.CloseTimeISO = correctedTime(trade.CloseTime, cfg.TimezoneOffsetHours).Format(time.RFC3339)
	}
	return m
}

// correctedTime shifts a broker-local epoch timestamp by the configured
// offset and interprets the result as wall-clock time.
func correctedTime(ts int64, offsetHours int) time.Time {
	return time.Unix(ts+int64(offsetHours)*3600, 0).UTC()
}

// sessionForHour buckets a corrected local hour into a trading session.
// The late hour 23 and anything unexpected fall back to ASIA.
func sessionForHour(hour int) string {
	switch {
	case hour >= 0 && hour < 9:
		return SessionAsia
	case hour >= 9 && hour < 10:
		return SessionFrankfurt
	case hour >= 10 && hour < 15:
		return SessionLondon
	case hour >= 15 && hour < 23:
		return SessionNewYork
	default:
		return SessionAsia
	}
}

// calcRiskMoney is the planned monetary loss implied by entry price,
// stop-loss and position size. Undefined without a stop or entry price.
func calcRiskMoney(openPrice, stopLoss, volume, contractSize float64) *float64 {
	if stopLoss == 0 || openPrice == 0 {
		return nil
	}
	risk := math.Abs(openPrice-stopLoss) * volume * contractSize
	return &risk
}

func calcRiskPercent(riskMoney *float64, startingBalance float64) *float64 {
	if riskMoney == nil || *riskMoney == 0 || startingBalance == 0 {
		return nil
	}
	pct := *riskMoney / startingBalance * 100
	return &pct
}

func calcProfitPercent(profit, startingBalance float64) *float64 {
	if startingBalance == 0 {
		return nil
	}
	pct := profit / startingBalance * 100
	return &pct
}

// classify determines the trade result. BE is checked first: a close near
// zero must count as breakeven regardless of whether a stop was planned.
// A losing trade within tolerance of the planned risk counts as SL, since
// slippage rarely lets a stop fill at the exact planned price.
func classify(profit float64, riskMoney, profitPercent *float64, cfg Config) string {
	if profitPercent != nil && math.Abs(*profitPercent) <= cfg.BEThresholdPercent {
		return ResultBreakeven
	}

	if riskMoney != nil && profit < 0 {
		tolerance := math.Abs(*riskMoney) * cfg.SLTolerancePercent / 100
		if math.Abs(profit+*riskMoney) <= tolerance {
			return ResultStopLoss
		}
	}

	if profit > 0 {
		return ResultTakeProf
	}
	return ResultManual
}

// calcRiskReward fixes BE at 0 and SL at -1; anything else is realized
// profit over planned risk, undefined when no risk was planned.
func calcRiskReward(profit float64, riskMoney *float64, result string) *float64 {
	switch result {
	case ResultBreakeven:
		zero := 0.0
		return &zero
	case ResultStopLoss:
		minusOne := -1.0
		return &minusOne
	}
	if riskMoney == nil || *riskMoney == 0 {
		return nil
	}
	rr := profit / *riskMoney
	return &rr
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
