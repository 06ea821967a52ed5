package services

import (
	"log"
	"time"

	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
)

// ResetStuckJobs moves back to pending any in-progress job whose last
// attempt started more than olderThan ago. A pass that was killed mid-job
// (app shutdown, crash) strands rows in in-progress; delivery is
// at-least-once, so resetting and resending is always safe.
func ResetStuckJobs(store *syncjobs.Store, olderThan time.Duration) error {
	var olderThanTime time.Time
	if olderThan >= 0 {
		olderThanTime = time.Now().Add(-1 * olderThan)
	} else {
		olderThanTime = time.Now().Add(olderThan)
	}
	jobs, err := store.GetOldInProgress(olderThanTime)
	if err != nil {
		return err
	}
	for _, qj := range jobs {
		err = store.UpdateStatus(qj.ID, models.StatusPending, "")
		if err == nil {
			log.Printf("Found stuck job %s and moved it back to pending", qj.ID.String())
		} else {
			// There may easily be races with a concurrent drain pass; if we
			// can't move it now, the next sweep will.
			log.Printf("Found stuck job %s but could not reset it: %s", qj.ID.String(), err.Error())
		}
	}
	return nil
}

// WatchStuckJobs polls the sync_jobs table for stuck jobs (in-progress jobs
// whose attempt started more than olderThan ago) and moves them back to
// pending.
func WatchStuckJobs(store *syncjobs.Store, interval time.Duration, olderThan time.Duration) {
	for range time.Tick(interval) {
		err := ResetStuckJobs(store, olderThan)
		if err != nil {
			log.Printf("Error resetting stuck jobs: %s\n", err.Error())
		}
	}
}
