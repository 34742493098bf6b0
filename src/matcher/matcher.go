package matcher

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"copytrader/src/model"
)

// subscriptionFinder is the slice of the repository the matcher needs.
type subscriptionFinder interface {
	FindActiveMatches(ctx context.Context, providerID string, symbol string) ([]model.SignalSubscription, error)
}

// Matcher resolves which subscriptions an incoming signal fans out to.
type Matcher struct {
	subscriptions subscriptionFinder
}

func NewMatcher(subscriptions subscriptionFinder) *Matcher {
	return &Matcher{subscriptions: subscriptions}
}

// Match returns every active subscription for the signal's provider whose
// symbol filter is either absent or equal to the signal's symbol. An empty
// set is a normal, frequent outcome.
func (m *Matcher) Match(ctx context.Context, signal *model.Signal) ([]model.SignalSubscription, error) {
	matches, err := m.subscriptions.FindActiveMatches(ctx, signal.ProviderID, signal.Symbol)
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"signal_id":   signal.ID,
		"provider_id": signal.ProviderID,
		"symbol":      signal.Symbol,
		"matches":     len(matches),
	}).Debug("subscription match resolved")

	return matches, nil
}

// AutoTradeOnly filters matches down to the ones that reach the execution
// orchestrator. Notification-only subscriptions never produce a copy trade
// log.
func AutoTradeOnly(matches []model.SignalSubscription) []model.SignalSubscription {
	var targets []model.SignalSubscription
	for _, match := range matches {
		if match.AutoTrade {
			targets = append(targets, match)
		}
	}
	return targets
}
