package orchestrator

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"copytrader/src/model"
)

// Sweep re-drives pending rows older than the grace period through the
// same idempotent path. Run on startup so executions interrupted between
// the pending insert and a terminal update are not lost. The pending row
// already exists, so the unique key keeps double execution impossible.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-o.config.SweepGracePeriod)

	stale, err := o.logs.FindStalePending(ctx, cutoff, o.config.SweepBatchSize)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		logger.Info("recovery sweep found no stale pending executions")
		return nil
	}

	logger.WithField("count", len(stale)).Warn("recovery sweep re-driving stale pending executions")

	for i := range stale {
		log := stale[i]

		signal, err := o.signals.FindByID(ctx, log.SignalID)
		if err != nil {
			o.capture(ctx, "Sweep", "FindSignal", err, map[string]interface{}{"log_id": log.ID})
			continue
		}

		var subscription *model.SignalSubscription
		if log.SubscriptionID != 0 {
			subscription, err = o.subscriptions.FindByID(ctx, log.SubscriptionID)
			if err != nil {
				o.capture(ctx, "Sweep", "FindSubscription", err, map[string]interface{}{"log_id": log.ID})
				continue
			}
		}

		if signal == nil || subscription == nil {
			// orphaned bookkeeping: nothing left to execute against
			o.finish(ctx, &log, model.ExecutionStatusFailed, map[string]interface{}{
				"reason": "signal or subscription no longer resolvable",
			})
			continue
		}

		o.drive(ctx, &log, signal, subscription)
	}

	return nil
}
