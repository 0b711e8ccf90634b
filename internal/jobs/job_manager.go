package jobs

import (
	"fmt"
)

// Job is a scheduled sweep.
type Job interface {
	Start() error
	Stop()
}

// JobManager starts and stops the background sweeps together.
type JobManager struct {
	jobs []namedJob
}

type namedJob struct {
	name string
	job  Job
}

func NewJobManager(
	reservationExpiry *ReservationExpiryJob,
	assignmentTimeout *AssignmentTimeoutJob,
	dispatchRetry *DispatchRetryJob,
	walletReconcile *WalletReconcileJob,
) *JobManager {
	return &JobManager{jobs: []namedJob{
		{name: "reservation expiry", job: reservationExpiry},
		{name: "assignment timeout", job: assignmentTimeout},
		{name: "dispatch retry", job: dispatchRetry},
		{name: "wallet reconcile", job: walletReconcile},
	}}
}

// StartAll starts every job. If one fails, the ones already started are stopped.
func (jm *JobManager) StartAll() error {
	for i, j := range jm.jobs {
		if err := j.job.Start(); err != nil {
			for _, started := range jm.jobs[:i] {
				started.job.Stop()
			}
			return fmt.Errorf("failed to start %s job: %w", j.name, err)
		}
	}
	return nil
}

// StopAll stops every job and waits for running sweeps to finish.
func (jm *JobManager) StopAll() {
	for _, j := range jm.jobs {
		j.job.Stop()
	}
}
