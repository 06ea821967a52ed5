package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
	"github.com/XBurnsX/toutiebudget-sync/server"
	"github.com/XBurnsX/toutiebudget-sync/test"
	"github.com/XBurnsX/toutiebudget-sync/test/factory"
)

type fakeTrigger struct {
	count int64
}

func (f *fakeTrigger) Trigger() {
	atomic.AddInt64(&f.count, 1)
}

func newAuthorizer() server.Authorizer {
	a := server.NewSharedSecretAuthorizer()
	a.AddUser("test", "hunter2")
	return a
}

// serve runs one request through a fully wired handler.
func serve(t *testing.T, store *syncjobs.Store, trigger server.Trigger, method, path string, withAuth bool) *httptest.ResponseRecorder {
	t.Helper()
	h := server.Get(newAuthorizer(), store, trigger)
	req, err := http.NewRequest(method, path, nil)
	test.AssertNotError(t, err, "")
	if withAuth {
		req.SetBasicAuth("test", "hunter2")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNoAuthReturns401(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "GET", "/v1/jobs", false)
	test.AssertEquals(t, w.Code, 401)
	test.AssertContains(t, w.Header().Get("WWW-Authenticate"), "Basic realm")
}

func TestWrongPasswordReturns403(t *testing.T) {
	store := test.SetUp(t)
	h := server.Get(newAuthorizer(), store, nil)
	req, _ := http.NewRequest("GET", "/v1/jobs", nil)
	req.SetBasicAuth("test", "wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	test.AssertEquals(t, w.Code, 403)
}

func TestListJobs(t *testing.T) {
	store := test.SetUp(t)
	factory.CreateSyncJob(t, store, nil)
	factory.CreateSyncJob(t, store, nil)
	w := serve(t, store, nil, "GET", "/v1/jobs", true)
	test.AssertEquals(t, w.Code, 200)
	var jobs []*models.SyncJob
	test.AssertNotError(t, json.Unmarshal(w.Body.Bytes(), &jobs), "")
	test.AssertEquals(t, len(jobs), 2)
}

func TestListJobsStatusFilter(t *testing.T) {
	store := test.SetUp(t)
	created := factory.CreateSyncJob(t, store, nil)
	factory.CreateSyncJob(t, store, nil)
	test.AssertNotError(t, store.UpdateStatus(created.ID, models.StatusInProgress, ""), "")

	w := serve(t, store, nil, "GET", "/v1/jobs?status=pending", true)
	test.AssertEquals(t, w.Code, 200)
	var jobs []*models.SyncJob
	test.AssertNotError(t, json.Unmarshal(w.Body.Bytes(), &jobs), "")
	test.AssertEquals(t, len(jobs), 1)
}

func TestListJobsBadStatus(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "GET", "/v1/jobs?status=bogus", true)
	test.AssertEquals(t, w.Code, 400)
	test.AssertContains(t, w.Body.String(), "invalid_status")
}

func TestCounts(t *testing.T) {
	store := test.SetUp(t)
	factory.CreateSyncJob(t, store, nil)
	factory.CreateSyncJob(t, store, nil)
	w := serve(t, store, nil, "GET", "/v1/jobs/counts", true)
	test.AssertEquals(t, w.Code, 200)
	var counts map[models.JobStatus]int64
	test.AssertNotError(t, json.Unmarshal(w.Body.Bytes(), &counts), "")
	test.AssertEquals(t, counts[models.StatusPending], int64(2))
}

func TestGetJob(t *testing.T) {
	store := test.SetUp(t)
	created := factory.CreateSyncJob(t, store, nil)
	w := serve(t, store, nil, "GET", "/v1/jobs/"+created.ID.String(), true)
	test.AssertEquals(t, w.Code, 200)
	var job models.SyncJob
	test.AssertNotError(t, json.Unmarshal(w.Body.Bytes(), &job), "")
	test.AssertEquals(t, job.EntityType, models.EntityTransaction)
}

func TestGetJobNotFound(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "GET", "/v1/jobs/"+factory.JobId.String(), true)
	test.AssertEquals(t, w.Code, 404)
}

func TestGetJobWrongPrefix(t *testing.T) {
	store := test.SetUp(t)
	// route requires a job_ prefix, anything else is a 404
	w := serve(t, store, nil, "GET", "/v1/jobs/usr_6740b44e-13b9-475d-af06-979627e0e0d6", true)
	test.AssertEquals(t, w.Code, 404)
}

func TestGetJobInvalidUUID(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "GET", "/v1/jobs/job_notauuid", true)
	test.AssertEquals(t, w.Code, 400)
	test.AssertContains(t, w.Body.String(), "invalid_uuid")
}

func TestRequeue(t *testing.T) {
	store := test.SetUp(t)
	created := factory.CreateSyncJob(t, store, nil)
	test.AssertNotError(t, store.UpdateStatus(created.ID, models.StatusInProgress, ""), "")
	test.AssertNotError(t, store.UpdateStatus(created.ID, models.StatusFailed, "HTTP 500"), "")

	w := serve(t, store, nil, "POST", "/v1/jobs/"+created.ID.String()+"/requeue", true)
	test.AssertEquals(t, w.Code, 200)
	var job models.SyncJob
	test.AssertNotError(t, json.Unmarshal(w.Body.Bytes(), &job), "")
	test.AssertEquals(t, job.Status, models.StatusPending)
}

func TestRequeuePendingRejected(t *testing.T) {
	store := test.SetUp(t)
	created := factory.CreateSyncJob(t, store, nil)
	w := serve(t, store, nil, "POST", "/v1/jobs/"+created.ID.String()+"/requeue", true)
	test.AssertEquals(t, w.Code, 400)
	test.AssertContains(t, w.Body.String(), "invalid_requeue")
}

func TestDeleteCompleted(t *testing.T) {
	store := test.SetUp(t)
	done := factory.CreateSyncJob(t, store, nil)
	test.AssertNotError(t, store.UpdateStatus(done.ID, models.StatusInProgress, ""), "")
	test.AssertNotError(t, store.UpdateStatus(done.ID, models.StatusCompleted, ""), "")
	factory.CreateSyncJob(t, store, nil)

	w := serve(t, store, nil, "DELETE", "/v1/jobs/completed", true)
	test.AssertEquals(t, w.Code, 200)
	test.AssertContains(t, w.Body.String(), `"deleted":1`)

	remaining, err := store.ListAll()
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, len(remaining), 1)
}

func TestDeleteAll(t *testing.T) {
	store := test.SetUp(t)
	factory.CreateSyncJob(t, store, nil)
	factory.CreateSyncJob(t, store, nil)
	w := serve(t, store, nil, "DELETE", "/v1/jobs", true)
	test.AssertEquals(t, w.Code, 200)
	test.AssertContains(t, w.Body.String(), `"deleted":2`)
}

func TestTriggerSync(t *testing.T) {
	store := test.SetUp(t)
	trigger := &fakeTrigger{}
	w := serve(t, store, trigger, "POST", "/v1/sync", true)
	test.AssertEquals(t, w.Code, 202)
	test.AssertEquals(t, atomic.LoadInt64(&trigger.count), int64(1))
}

func TestTriggerSyncWithoutScheduler(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "POST", "/v1/sync", true)
	test.AssertEquals(t, w.Code, 404)
}

func TestMethodNotAllowed(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "PUT", "/v1/jobs", true)
	test.AssertEquals(t, w.Code, 405)
}

func TestUnknownRoute404(t *testing.T) {
	store := test.SetUp(t)
	w := serve(t, store, nil, "GET", "/v2/nope", true)
	test.AssertEquals(t, w.Code, 404)
}
