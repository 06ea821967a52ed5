// Package worker drains the local sync queue against the remote backend.
// A drain pass walks every pending and failed job in enqueue order and
// replays each one as an HTTP call, so mutations made offline land on the
// backend in the order the user made them.
package worker

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/XBurnsX/toutiebudget-sync/auth"
	"github.com/XBurnsX/toutiebudget-sync/collections"
	"github.com/XBurnsX/toutiebudget-sync/connectivity"
	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
	"github.com/XBurnsX/toutiebudget-sync/remote"
	"github.com/XBurnsX/toutiebudget-sync/urls"
)

// Outcome summarizes a drain pass for the scheduler.
type Outcome string

const (
	// Every job in the pass synced, or there was nothing to sync.
	OutcomeSuccess = Outcome("success")
	// The pass could not run or at least one job failed; worth retrying
	// with backoff.
	OutcomeRetry = Outcome("retry")
	// The pass hit an error that retrying will not fix (for example the
	// queue itself is unreadable).
	OutcomeFailure = Outcome("failure")
)

// A Worker replays queued mutations against the remote backend. All fields
// must be set before calling DoPass.
type Worker struct {
	Store        *syncjobs.Store
	Connectivity connectivity.Checker
	Auth         auth.TokenProvider
	URLs         urls.Resolver

	// NewClient builds the API client for one pass. Swappable in tests.
	NewClient func(token, base string) *remote.Client
}

// New creates a Worker draining the given store.
func New(store *syncjobs.Store, checker connectivity.Checker, tokens auth.TokenProvider, resolver urls.Resolver) *Worker {
	return &Worker{
		Store:        store,
		Connectivity: checker,
		Auth:         tokens,
		URLs:         resolver,
		NewClient:    remote.NewClient,
	}
}

// DoPass drains the queue once. Preconditions (network, a signed-in user, a
// reachable base URL) that don't hold yet return OutcomeRetry without
// touching any job. Inside the pass each job fails independently; one bad
// job never blocks the ones behind it.
func (w *Worker) DoPass() (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic during drain pass: %v", r)
			go metrics.Increment("sync.pass.panic")
			outcome = OutcomeFailure
		}
	}()

	if !w.Connectivity.Online() {
		go metrics.Increment("sync.pass.offline")
		return OutcomeRetry
	}
	token, err := w.Auth.Token()
	if err != nil {
		log.Printf("error reading saved credentials: %s", err)
		return OutcomeRetry
	}
	if token == "" {
		go metrics.Increment("sync.pass.no_auth")
		return OutcomeRetry
	}
	base, err := w.URLs.ActiveBaseURL()
	if err != nil {
		go metrics.Increment("sync.pass.no_base_url")
		return OutcomeRetry
	}

	jobs, err := w.Store.ListPendingAndFailed()
	if err != nil {
		log.Printf("error listing queued jobs: %s", err)
		return OutcomeFailure
	}
	if len(jobs) == 0 {
		return OutcomeSuccess
	}

	client := w.NewClient(token, base)
	start := time.Now()
	failures := 0
	for _, job := range jobs {
		if err := w.processJob(client, job); err != nil {
			failures++
		}
	}
	go metrics.Time("sync.pass.latency", time.Since(start))
	go metrics.Measure("sync.pass.jobs", int64(len(jobs)))
	log.Printf("drain pass finished: %d jobs, %d failed, took %v", len(jobs), failures, time.Since(start))
	if failures > 0 {
		return OutcomeRetry
	}
	return OutcomeSuccess
}

// processJob replays one queued mutation. Returns nil if the job reached
// completed, or the error that moved it to failed.
func (w *Worker) processJob(client *remote.Client, job *models.SyncJob) error {
	if err := w.Store.UpdateStatus(job.ID, models.StatusInProgress, ""); err != nil {
		log.Printf("error marking job %s in-progress: %s", job.ID.String(), err)
		go metrics.Increment("sync.job.claim_error")
		return err
	}
	log.Printf("syncing job %s (%s %s)", job.ID.String(), job.Action, job.EntityType)
	err := w.push(client, job)
	if err != nil {
		go metrics.Increment("sync.job.failed")
		go metrics.Increment(fmt.Sprintf("sync.job.%s.failed", job.Action))
		log.Printf("job %s failed: %s", job.ID.String(), err)
		if serr := w.Store.UpdateStatus(job.ID, models.StatusFailed, err.Error()); serr != nil {
			log.Printf("error marking job %s failed: %s", job.ID.String(), serr)
		}
		return err
	}
	go metrics.Increment("sync.job.completed")
	if serr := w.Store.UpdateStatus(job.ID, models.StatusCompleted, ""); serr != nil {
		log.Printf("error marking job %s completed: %s", job.ID.String(), serr)
		return serr
	}
	return nil
}

// push makes the HTTP call for one job.
func (w *Worker) push(client *remote.Client, job *models.SyncJob) error {
	collection := job.Collection
	if collection == "" {
		var err error
		collection, err = collections.Name(job.EntityType)
		if err != nil {
			return err
		}
	}
	switch job.Action {
	case models.ActionCreate:
		return client.Records.Create(collection, job.Payload)
	case models.ActionUpdate:
		recordID, err := recordID(job)
		if err != nil {
			return err
		}
		payload := job.Payload
		if job.EntityType == models.EntityAllocationMensuelle {
			payload, err = remote.NormalizeAllocationUpdate(payload)
			if err != nil {
				return fmt.Errorf("invalid allocation payload: %s", err)
			}
		}
		return client.Records.Update(collection, recordID, payload)
	case models.ActionDelete:
		recordID, err := recordID(job)
		if err != nil {
			return err
		}
		return client.Records.Delete(collection, recordID)
	default:
		return fmt.Errorf("unknown action %q", job.Action)
	}
}

// recordID returns the remote record id for an update or delete. Jobs
// enqueued before the record id was known fall back to the "id" field of the
// payload; with neither, the job can never address its record and fails
// without an HTTP call.
func recordID(job *models.SyncJob) (string, error) {
	if job.RecordID != "" {
		return job.RecordID, nil
	}
	if id := extractPayloadID(job.Payload); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no record id for %s on %s %s", job.Action, job.EntityType, job.EntityID)
}

func extractPayloadID(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var fields struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	return fields.ID
}
