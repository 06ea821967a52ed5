package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/test"
	"github.com/XBurnsX/toutiebudget-sync/test/factory"
)

func TestEnqueueMutationResolvesCollection(t *testing.T) {
	t.Parallel()
	store := test.SetUp(t)
	job, err := EnqueueMutation(store, MutationParams{
		EntityType: models.EntityEnveloppe,
		Action:     models.ActionCreate,
		EntityID:   factory.RandomEntityID(),
		Payload:    json.RawMessage(`{"nom": "Loyer"}`),
	})
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, job.Collection, "enveloppes")
	test.AssertEquals(t, job.Status, models.StatusPending)

	got, err := store.Get(job.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.Collection, "enveloppes")
}

func TestEnqueueMutationUnknownEntityType(t *testing.T) {
	t.Parallel()
	store := test.SetUp(t)
	_, err := EnqueueMutation(store, MutationParams{
		EntityType: models.EntityType("OBJECTIF"),
		Action:     models.ActionCreate,
		EntityID:   factory.RandomEntityID(),
	})
	test.AssertError(t, err, "")
	test.AssertContains(t, err.Error(), "OBJECTIF")
}

func TestRequeueFailedJob(t *testing.T) {
	t.Parallel()
	store := test.SetUp(t)
	created := factory.CreateSyncJob(t, store, nil)
	test.AssertNotError(t, store.UpdateStatus(created.ID, models.StatusInProgress, ""), "")
	test.AssertNotError(t, store.UpdateStatus(created.ID, models.StatusFailed, "HTTP 400"), "")

	job, err := RequeueJob(store, created.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, job.Status, models.StatusPending)
	test.AssertEquals(t, job.ErrorMessage, "")
	// retry history survives the requeue
	test.AssertEquals(t, job.RetryCount, 1)
}

func TestRequeuePendingJobRejected(t *testing.T) {
	t.Parallel()
	store := test.SetUp(t)
	created := factory.CreateSyncJob(t, store, nil)
	_, err := RequeueJob(store, created.ID)
	test.AssertError(t, err, "")
	test.AssertContains(t, err.Error(), "pending")
}

func TestResetStuckJobs(t *testing.T) {
	t.Parallel()
	store := test.SetUp(t)
	stuck := factory.CreateSyncJob(t, store, nil)
	test.AssertNotError(t, store.UpdateStatus(stuck.ID, models.StatusInProgress, ""), "")
	fresh := factory.CreateSyncJob(t, store, nil)

	// negative horizon: anything attempted before one hour from now counts
	err := ResetStuckJobs(store, -time.Hour)
	test.AssertNotError(t, err, "")

	job, err := store.Get(stuck.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, job.Status, models.StatusPending)

	other, err := store.Get(fresh.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, other.Status, models.StatusPending)
}

func TestResetStuckJobsLeavesRecentAlone(t *testing.T) {
	t.Parallel()
	store := test.SetUp(t)
	active := factory.CreateSyncJob(t, store, nil)
	test.AssertNotError(t, store.UpdateStatus(active.ID, models.StatusInProgress, ""), "")

	err := ResetStuckJobs(store, time.Hour)
	test.AssertNotError(t, err, "")

	job, err := store.Get(active.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, job.Status, models.StatusInProgress)
}
