package runner

import (
	"context"
	"fmt"

	"coinbase_bot/internal/notify"
	"coinbase_bot/pkg/logger"

	"github.com/robfig/cron/v3"
)

// NewCron планировщик, в котором задача не запускается повторно, пока не завершён предыдущий запуск.
func NewCron() *cron.Cron {
	return cron.New(cron.WithChain(skipOverlapping()))
}

func skipOverlapping() cron.JobWrapper {
	return cron.SkipIfStillRunning(cronLogger{})
}

// cronLogger cron.Logger поверх pkg/logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("[CRON] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("[CRON] %s: %v %v", msg, err, keysAndValues)
}

// Schedule регистрирует сверку ордеров и ежедневную сводку. Пустое расписание выключает задачу.
func (r *Runner) Schedule(ctx context.Context, c *cron.Cron, reconcileSpec, summarySpec string) error {
	if reconcileSpec != "" {
		if _, err := c.AddFunc(reconcileSpec, func() { r.rec.Reconcile(ctx) }); err != nil {
			return fmt.Errorf("reconcile schedule %q: %w", reconcileSpec, err)
		}
	}
	if summarySpec != "" {
		if _, err := c.AddFunc(summarySpec, r.SendSummary); err != nil {
			return fmt.Errorf("summary schedule %q: %w", summarySpec, err)
		}
	}
	return nil
}

// SendSummary сводка по всем символам в нотифайер.
func (r *Runner) SendSummary() {
	snaps := r.Snapshots()
	var trades int64
	var profit float64
	for _, s := range snaps {
		trades += s.TotalTrades
		profit += s.TotalProfit
	}
	logger.Info("[SUMMARY] symbols=%d trades=%d profit=%.2f open_orders=%d", len(snaps), trades, profit, r.rec.Pending())
	r.notify("📈 Сводка: сделок %d, прибыль %.2f, ордеров в работе %d\n\n%s",
		trades, profit, r.rec.Pending(), notify.FormatStatus(snaps))
}
