package engine

import "fmt"

// OutcomeStatus classifies how a sync call ended.
type OutcomeStatus string

const (
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeSynced  OutcomeStatus = "synced"
	OutcomeError   OutcomeStatus = "error"
)

// SkipReason explains an OutcomeSkipped result.
type SkipReason string

const (
	SkipCooldown        SkipReason = "cooldown"
	SkipDisabled        SkipReason = "disabled"
	SkipUnauthenticated SkipReason = "not_authenticated"
	SkipNoProviderID    SkipReason = "no_provider_id"
)

// Outcome is the structured result of one sync call. Scheduled callers
// always receive an Outcome; a non-nil error accompanies OutcomeError so the
// scheduler can classify the failure.
type Outcome struct {
	Provider string
	SyncType string
	Scope    string

	Status OutcomeStatus
	Reason SkipReason

	Synced    int // items seen in the remote set
	Added     int
	Removed   int // removals applied, or reported when policy forbids applying
	Unchanged int

	// ItemErrors collects per-item mapping/upsert failures that did not
	// abort the call; the call still reports partial success.
	ItemErrors []error
}

func (o *Outcome) String() string {
	switch o.Status {
	case OutcomeSkipped:
		return fmt.Sprintf("%s/%s skipped (%s)", o.Provider, o.SyncType, o.Reason)
	case OutcomeSynced:
		return fmt.Sprintf("%s/%s synced=%d added=%d removed=%d unchanged=%d errors=%d",
			o.Provider, o.SyncType, o.Synced, o.Added, o.Removed, o.Unchanged, len(o.ItemErrors))
	default:
		return fmt.Sprintf("%s/%s error", o.Provider, o.SyncType)
	}
}

func skipped(provider, syncType, scope string, reason SkipReason) *Outcome {
	return &Outcome{
		Provider: provider,
		SyncType: syncType,
		Scope:    scope,
		Status:   OutcomeSkipped,
		Reason:   reason,
	}
}
