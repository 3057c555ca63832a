package worker

// LogMsgWorkerJobFailed is logged when a worker fails to process a job
const LogMsgWorkerJobFailed = "Worker job failed"

// Log messages for maintenance jobs
const (
	LogMsgPollSweepFailed    = "Poll sweep failed"
	LogMsgRetrySweepFailed   = "Subscription retry sweep failed"
	LogMsgRenewalSweepFailed = "Registration renewal sweep failed"
)

// Default pool sizing. Sweep jobs are IO-bound provider calls, a small
// pool is enough.
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 64
)

// Test configuration constants
const (
	TestWorkerCount           = 2
	TestQueueSize             = 10
	TestWorkerProcessWaitTime = 100
	TestExpectedJobCount      = 2
)
