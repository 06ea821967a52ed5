package services

import (
	"fmt"

	"github.com/Shyp/go-simple-metrics"
	"github.com/Shyp/go-types"
	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
)

// RequeueJob moves a failed job back to pending so the next drain pass
// retries it immediately instead of waiting out the backoff. Only failed
// jobs can be requeued by hand.
func RequeueJob(store *syncjobs.Store, id types.PrefixUUID) (*models.SyncJob, error) {
	job, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusFailed {
		return nil, fmt.Errorf("cannot requeue job with status %s", job.Status)
	}
	if err := store.UpdateStatus(id, models.StatusPending, ""); err != nil {
		return nil, err
	}
	go metrics.Increment("requeue")
	return store.Get(id)
}
