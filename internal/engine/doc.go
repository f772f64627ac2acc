// package engine implements the multi-provider synchronization and
// deduplication core: canonical identity resolution, per-provider diff-sync
// with cooldowns, provider fallback orchestration, and the scheduler loop
// with its rate-limit backoff controller.
//
// One SyncService exists per provider and owns that provider's sync status
// records. One Scheduler exists per provider and owns that provider's pause
// state; schedulers never share mutable state with each other or with the
// sync services. The canonical store is the only shared resource, and every
// sync call works through its own short-lived transaction.
package engine
