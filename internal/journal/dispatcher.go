package journal

import (
	"context"
	"fmt"
	"sync"

	"mt5-journal-sync/internal/config"
	"mt5-journal-sync/internal/metrics"
	"mt5-journal-sync/internal/mt5"
	"mt5-journal-sync/internal/notion"
	"mt5-journal-sync/internal/telemetry"

	"go.uber.org/zap"
)

// Mirror outcome statuses.
const (
	MirrorStatusMirrored = "mirrored"
	MirrorStatusSkipped  = "skipped"
	MirrorStatusFailed   = "failed"
)

// MirrorOutcome is the per-trade result of one dispatch pass. Failures
// are recorded here and in the logs; they never abort the batch.
type MirrorOutcome struct {
	DealID int64
	Status string
	PageID string
	Reason string
}

// Dispatcher mirrors classified trades into the Notion sink. Mirroring is
// best-effort with per-item isolation: a trade that fails stays
// unmirrored and becomes eligible again on the next sync cycle.
type Dispatcher struct {
	tracker *Tracker
	sink    notion.PageCreator
	cfg     *config.Notion
	workers int
	logger  *zap.Logger
}

// NewDispatcher creates a new mirror dispatcher. workers bounds how many
// sink calls run concurrently within one dispatch.
func NewDispatcher(tracker *Tracker, sink notion.PageCreator, cfg *config.Notion, workers int, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		tracker: tracker,
		sink:    sink,
		cfg:     cfg,
		workers: workers,
		logger:  logger.Named("dispatcher"),
	}
}

// Dispatch attempts to mirror every trade of the batch that still needs
// it. Classification is recomputed per trade; it is pure and cheap, and
// avoids a second storage round trip.
func (d *Dispatcher) Dispatch(ctx context.Context, accountID uint, accountName string, trades []mt5.Trade, startingBalance float64, mcfg metrics.Config) []MirrorOutcome {
	d.logger.Info("Starting mirror dispatch",
		zap.Uint("account_id", accountID),
		zap.Int("trades", len(trades)),
	)

	jobs := make(chan mt5.Trade)
	results := make(chan MirrorOutcome, len(trades))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trade := range jobs {
				outcome := d.mirrorOne(ctx, accountID, accountName, trade, startingBalance, mcfg)
				telemetry.RecordMirror(outcome.Status)
				results <- outcome
			}
		}()
	}

	for _, trade := range trades {
		jobs <- trade
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]MirrorOutcome, 0, len(trades))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// mirrorOne mirrors a single trade. Every exit path leaves the trade's
// mirror state consistent: only a sink call that returned a page id and
// won the compare-and-set transitions the trade to mirrored.
func (d *Dispatcher) mirrorOne(ctx context.Context, accountID uint, accountName string, trade mt5.Trade, startingBalance float64, mcfg metrics.Config) MirrorOutcome {
	l := d.logger.With(zap.Uint("account_id", accountID), zap.Int64("deal_id", trade.DealID))

	exists, mirrored := d.tracker.MirrorState(accountID, trade.DealID)
	if !exists {
		// The trade never made it into the store; nothing to mirror.
		l.Info("Skipping mirror", zap.String("reason", "not_inserted"))
		return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusSkipped, Reason: "not_inserted"}
	}
	if mirrored {
		l.Debug("Skipping mirror", zap.String("reason", "already_mirrored"))
		return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusSkipped, Reason: "already_mirrored"}
	}

	m := metrics.Build(trade, startingBalance, mcfg)
	page := d.buildPage(accountID, accountName, trade, m)

	pageID, err := d.sink.CreatePage(ctx, page)
	if err != nil {
		l.Error("Failed to create mirror page", zap.Error(err))
		return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusFailed, Reason: err.Error()}
	}
	if pageID == "" {
		// Unconfigured sink. The trade stays unmirrored so a later sync
		// picks it up once the sink is set up.
		l.Warn("Mirror sink returned no page id, leaving trade unmirrored")
		return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusSkipped, Reason: "sink_unconfigured"}
	}

	claimed, err := d.tracker.MarkMirrored(accountID, trade.DealID, pageID)
	if err != nil {
		l.Error("Failed to record mirror state", zap.String("page_id", pageID), zap.Error(err))
		return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusFailed, Reason: err.Error()}
	}
	if !claimed {
		l.Warn("Trade was mirrored concurrently", zap.String("page_id", pageID))
		return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusSkipped, Reason: "already_mirrored"}
	}

	l.Info("Mirrored trade", zap.String("page_id", pageID))
	return MirrorOutcome{DealID: trade.DealID, Status: MirrorStatusMirrored, PageID: pageID}
}

// buildPage assembles the Notion page payload from raw and derived
// fields. Properties whose names are not configured are left out, since
// Notion rejects unknown property names.
func (d *Dispatcher) buildPage(accountID uint, accountName string, trade mt5.Trade, m metrics.Metrics) notion.PageRequest {
	props := map[string]interface{}{
		d.cfg.TitleProp: notion.TitleProp(trade.Symbol),
	}

	accountLabel := accountName
	if accountLabel == "" {
		accountLabel = fmt.Sprintf("%d", accountID)
	}

	addSelect(props, d.cfg.DirectionProp, trade.Direction)
	addDate(props, d.cfg.OpenTimeProp, m.OpenTimeISO)
	addDate(props, d.cfg.CloseTimeProp, m.CloseTimeISO)
	addNumber(props, d.cfg.ProfitProp, &trade.Profit)
	addNumber(props, d.cfg.CommissionProp, &m.Commission)
	addNumber(props, d.cfg.SwapProp, &trade.Swap)
	addText(props, d.cfg.AccountProp, accountLabel)
	addText(props, d.cfg.WeekdayProp, m.Weekday)
	addSelect(props, d.cfg.SessionProp, m.Session)
	addDate(props, d.cfg.DateProp, m.Date)
	addSelect(props, d.cfg.ResultProp, m.Result)
	addNumber(props, d.cfg.RiskRewardProp, m.RiskReward)
	addNumber(props, d.cfg.RiskPercentProp, m.RiskPercent)

	return notion.PageRequest{
		Parent:     notion.Parent{DatabaseID: d.cfg.DatabaseID},
		Properties: props,
	}
}

func addNumber(props map[string]interface{}, name string, value *float64) {
	if name == "" || value == nil {
		return
	}
	props[name] = notion.NumberProp(*value)
}

func addText(props map[string]interface{}, name, value string) {
	if name == "" || value == "" {
		return
	}
	props[name] = notion.TextProp(value)
}

func addSelect(props map[string]interface{}, name, value string) {
	if name == "" || value == "" {
		return
	}
	props[name] = notion.SelectProp(value)
}

func addDate(props map[string]interface{}, name, value string) {
	if name == "" || value == "" {
		return
	}
	props[name] = notion.DateProp(value)
}
