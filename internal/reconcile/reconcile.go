// Package reconcile decides, per fund class, what a freshly fetched detail
// record means for the locally stored copy.
package reconcile

import (
	"time"

	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/normalize"
)

// Reasons attached to a Decision.
const (
	ReasonNoDetail           = "no published detail"
	ReasonStaleNoLocal       = "stale upstream, nothing stored"
	ReasonStalePrune         = "stale upstream"
	ReasonUnchanged          = "composition date unchanged"
	ReasonCompositionRegress = "composition date regressed"
	ReasonFirstSync          = "first sync"
	ReasonChanged            = "composition date advanced"
)

// DefaultStaleMonths is the age past which an upstream reference date marks a
// class as dead.
const DefaultStaleMonths = 1

// Policy holds the tunable thresholds.
type Policy struct {
	StaleMonths int
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{StaleMonths: DefaultStaleMonths}
}

// Decision is the outcome for one class.
type Decision struct {
	Action model.SyncAction
	Reason string
	// Anomaly marks a decision worth a warning in the logs.
	Anomaly bool
}

// Decide applies the reconciliation rules in order:
//
//  1. No remote detail: skip.
//  2. Remote reference date older than now minus StaleMonths: prune when a
//     local row exists, otherwise skip. Pruning wins over the unchanged check.
//  3. Local row never synced (seeded from the master list only): update.
//  4. Local composition date equal to remote: skip. Two empty dates are equal,
//     so a class that publishes no portfolio is not rewritten on every run.
//  5. Remote composition date earlier than local: skip, flagged as anomaly, so
//     the stored composition date never moves backwards.
//  6. Otherwise: update.
//
// A reference date that is missing or cannot be parsed is treated as fresh.
func Decide(local *model.FlattenedFundClass, remote *model.Detail, now time.Time, p Policy) Decision {
	if remote == nil {
		return Decision{Action: model.ActionSkip, Reason: ReasonNoDetail}
	}

	if IsStale(remote.ReferenceDate, now, p) {
		if local != nil {
			return Decision{Action: model.ActionPrune, Reason: ReasonStalePrune}
		}
		return Decision{Action: model.ActionSkip, Reason: ReasonStaleNoLocal}
	}

	if local == nil || local.Class.LastSync.IsZero() {
		return Decision{Action: model.ActionUpdate, Reason: ReasonFirstSync}
	}

	localDate := local.Class.CompositionDate
	if localDate == remote.CompositionDate {
		return Decision{Action: model.ActionSkip, Reason: ReasonUnchanged}
	}

	lt, lok := normalize.ParseDate(localDate)
	rt, rok := normalize.ParseDate(remote.CompositionDate)
	if lok && rok && rt.Before(lt) {
		return Decision{Action: model.ActionSkip, Reason: ReasonCompositionRegress, Anomaly: true}
	}

	return Decision{Action: model.ActionUpdate, Reason: ReasonChanged}
}

// IsStale reports whether referenceDate is older than now minus the policy window.
func IsStale(referenceDate string, now time.Time, p Policy) bool {
	ref, ok := normalize.ParseDate(referenceDate)
	if !ok {
		return false
	}
	months := p.StaleMonths
	if months <= 0 {
		months = DefaultStaleMonths
	}
	return ref.Before(now.AddDate(0, -months, 0))
}
