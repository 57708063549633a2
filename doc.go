// Package queuectl implements a durable, single-store job queue for
// shell commands.
//
// Producers enqueue commands via a Manager. Independent worker
// processes poll a shared Store, atomically claim one eligible job at
// a time, execute it through a Runner, and report the outcome. Failed
// jobs are retried with exponential backoff (base^attempts seconds,
// base from the backoff_base config key) until their retry budget is
// exhausted, at which point they move to the dead-letter queue. Dead
// jobs only re-enter the queue through an explicit operator retry that
// resets their attempt counter.
//
// The Store is the single source of truth and the only shared mutable
// resource. Its Claim operation performs the select-and-mark under an
// exclusive write intent, so exactly one of any number of concurrent
// claimers receives a given job. The default persistent store is the
// SQLite-backed one in the "sqlite" package; "mysql" and "mongodb"
// provide alternatives for shared servers. An in-memory store is used
// by default and in tests.
//
// A job is always in one of four persisted states: pending (waiting to
// be claimed), processing (owned by exactly one worker), completed,
// and dead. A fifth label, failed, is diagnostic only: the worker
// force-writes it when it cannot persist the outcome of a claimed job,
// so the row does not look owned forever. No reaper returns orphaned
// processing rows to pending; a worker that crashes between claim and
// report leaves its job stuck, which operators can spot via the status
// summary.
//
// Workers observe a shared stop signal, a marker file, at startup and
// at the top of every poll cycle. Creating the marker asks all workers
// to exit after finishing any in-flight job; the worker that observes
// it consumes it, so one signal gates exactly one startup window.
package queuectl
