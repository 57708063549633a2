package queuectl

// Stats returns statistics about the job queue.
type Stats struct {
	Pending    int `json:"pending"`    // jobs waiting to be claimed
	Processing int `json:"processing"` // jobs currently owned by a worker
	Completed  int `json:"completed"`  // successfully completed jobs
	Dead       int `json:"dead"`       // jobs in the DLQ
	Failed     int `json:"failed"`     // diagnostic bucket, zero in normal operation
}
