package queuectl

const (
	// Pending jobs are waiting for a worker to claim them.
	Pending string = "pending"
	// Processing is the state of a job currently owned by a worker.
	Processing string = "processing"
	// Completed jobs finished with exit code 0. Terminal.
	Completed string = "completed"
	// Dead jobs exhausted their retry budget (the DLQ). Terminal until
	// an explicit operator retry.
	Dead string = "dead"
	// Failed is a diagnostic label only. No normal code path persists
	// it; the worker force-writes it when a claimed job's outcome could
	// not be saved, so the row does not sit in Processing forever.
	Failed string = "failed"
)

// States lists every state a summary must report, in display order.
var States = []string{Pending, Processing, Completed, Dead, Failed}

// Job is a shell command that needs to be executed.
type Job struct {
	ID         string `json:"id"`          // unique identifier, assigned at enqueue time
	Command    string `json:"command"`     // command line, run by the shell
	State      string `json:"state"`       // current state
	Attempts   int    `json:"attempts"`    // number of failed executions so far
	MaxRetries int    `json:"max_retries"` // attempts after which the job is moved to the DLQ
	RunAt      int64  `json:"run_at"`      // earliest time the job may be claimed (in UnixNano)
	Created    int64  `json:"created"`     // time when Enqueue was called (in UnixNano)
	Updated    int64  `json:"updated"`     // time when the job was last updated (in UnixNano)
}
