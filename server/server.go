// Package server provides an HTTP interface for inspecting the sync queue.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/http/pprof"
	"os"
	"regexp"
	"strings"

	"github.com/Shyp/go-simple-metrics"
	"github.com/Shyp/rest"
	"github.com/XBurnsX/toutiebudget-sync/config"
	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
	"github.com/XBurnsX/toutiebudget-sync/services"
)

var disallowUnencryptedRequests = true

// A Trigger asks the scheduler for an immediate drain pass. Usually a
// *scheduler.Scheduler.
type Trigger interface {
	Trigger()
}

// POST /v1/jobs/job_123/requeue
var requeueRoute = regexp.MustCompile(`^/v1/jobs/(?P<id>job_[^\s\/]+)/requeue$`)

// GET /v1/jobs/job_123
//
// Must go before the other /v1/jobs matches
var getJobRoute = regexp.MustCompile(`^/v1/jobs/(?P<id>job_[^\s\/]+)$`)

// GET /v1/jobs/counts
var countsRoute = regexp.MustCompile("^/v1/jobs/counts$")

// DELETE /v1/jobs/completed
var completedRoute = regexp.MustCompile("^/v1/jobs/completed$")

// GET/DELETE /v1/jobs
var jobsRoute = regexp.MustCompile("^/v1/jobs$")

// POST /v1/sync
var syncRoute = regexp.MustCompile("^/v1/sync$")

// Get returns a http.Handler with all routes initialized using the given
// Authorizer, serving the given store. trigger may be nil if no scheduler is
// attached; POST /v1/sync then returns a 404.
func Get(a Authorizer, store *syncjobs.Store, trigger Trigger) http.Handler {
	h := new(RegexpHandler)

	h.Handler(countsRoute, []string{"GET"}, authHandler(getCounts(store), a))
	h.Handler(completedRoute, []string{"DELETE"}, authHandler(deleteCompleted(store), a))
	h.Handler(requeueRoute, []string{"POST"}, authHandler(requeueJob(store), a))
	h.Handler(getJobRoute, []string{"GET"}, authHandler(getJob(store), a))
	h.Handler(jobsRoute, []string{"GET", "DELETE"}, authHandler(handleJobsRoute(store), a))
	if trigger != nil {
		h.Handler(syncRoute, []string{"POST"}, authHandler(triggerSync(trigger), a))
	}

	h.Handler(regexp.MustCompile("^/debug/pprof$"), []string{"GET"}, authHandler(http.HandlerFunc(pprof.Index), a))
	h.Handler(regexp.MustCompile("^/debug/pprof/cmdline$"), []string{"GET"}, authHandler(http.HandlerFunc(pprof.Cmdline), a))
	h.Handler(regexp.MustCompile("^/debug/pprof/profile$"), []string{"GET"}, authHandler(http.HandlerFunc(pprof.Profile), a))
	h.Handler(regexp.MustCompile("^/debug/pprof/symbol$"), []string{"GET"}, authHandler(http.HandlerFunc(pprof.Symbol), a))
	h.Handler(regexp.MustCompile("^/debug/pprof/trace$"), []string{"GET"}, authHandler(http.HandlerFunc(pprof.Trace), a))

	h.Handler(regexp.MustCompile("^/$"), []string{"GET"}, authHandler(http.HandlerFunc(renderHomepage), a))

	return debugRequestBodyHandler(
		serverHeaderHandler(
			forbidNonTLSTrafficHandler(h),
		),
	)
}

func init() {
	disallowUnencryptedRequests = os.Getenv("ALLOW_UNENCRYPTED_PROXY_TRAFFIC") != "true"
}

func serverHeaderHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// hack, figure out how to put middleware on a subset of responses
		if strings.Contains(r.URL.Path, "/debug/pprof") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		} else if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		} else {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		w.Header().Set("Server", fmt.Sprintf("toutiebudget-sync/%s", config.Version))
		h.ServeHTTP(w, r)
	})
}

// forbidNonTLSTrafficHandler returns a 403 to traffic that is sent via a proxy
func forbidNonTLSTrafficHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if disallowUnencryptedRequests == true {
			if r.Header.Get("X-Forwarded-Proto") == "http" {
				// It should always be set, but if it's not, let the request
				// through.
				forbidden(w, insecure403(r))
				return
			}
		}
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		h.ServeHTTP(w, r)
	})
}

func authHandler(h http.Handler, a Authorizer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, token, ok := r.BasicAuth()
		if !ok {
			authenticate(w, new401(r))
			return
		}
		err := a.Authorize(userId, token)
		if err != nil {
			metrics.Increment("auth.error")
			handleAuthorizeError(w, r, err)
			return
		}
		metrics.Increment("auth.success")
		h.ServeHTTP(w, r)
	})
}

// debugRequestBodyHandler prints all incoming and outgoing HTTP traffic if the
// DEBUG_HTTP_TRAFFIC environment variable is set to true. Note that the output
// will be jumbled if the server is handling multiple requests at the same
// time.
func debugRequestBodyHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if os.Getenv("DEBUG_HTTP_TRAFFIC") == "true" {
			// You need to write the entire thing in one Write, otherwise the
			// output will be jumbled with other requests.
			b := new(bytes.Buffer)
			bits, err := httputil.DumpRequest(r, true)
			if err != nil {
				_, _ = b.WriteString(err.Error())
			} else {
				_, _ = b.Write(bits)
			}
			res := httptest.NewRecorder()
			h.ServeHTTP(res, r)

			_, _ = b.WriteString(fmt.Sprintf("HTTP/1.1 %d\r\n", res.Code))
			_ = res.HeaderMap.Write(b)
			for k, v := range res.HeaderMap {
				w.Header()[k] = v
			}
			w.WriteHeader(res.Code)
			_, _ = b.WriteString("\r\n")
			writer := io.MultiWriter(w, b)
			_, _ = res.Body.WriteTo(writer)
			_, _ = b.WriteTo(os.Stderr)
		} else {
			h.ServeHTTP(w, r)
		}
	})
}

// GET/DELETE disambiguator for /v1/jobs
func handleJobsRoute(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "DELETE" {
			deleteAll(store).ServeHTTP(w, r)
		} else {
			listJobs(store).ServeHTTP(w, r)
		}
	})
}

// GET /v1/jobs
//
// List the queue, oldest first. An optional ?status= query parameter
// restricts the list to one status.
func listJobs(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var jobsList []*models.SyncJob
		var err error
		if statusStr := r.URL.Query().Get("status"); statusStr != "" {
			status := models.JobStatus(statusStr)
			switch status {
			case models.StatusPending, models.StatusInProgress, models.StatusCompleted, models.StatusFailed:
			default:
				badRequest(w, r, &rest.Error{
					ID:       "invalid_status",
					Title:    fmt.Sprintf("Invalid status: %s", statusStr),
					Instance: r.URL.Path,
				})
				return
			}
			jobsList, err = store.ListByStatus(status)
		} else {
			jobsList, err = store.ListAll()
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if jobsList == nil {
			jobsList = []*models.SyncJob{}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(jobsList)
		go metrics.Increment("jobs.list.success")
	})
}

// GET /v1/jobs/counts
//
// Number of jobs per status, for the inspector's statistics view.
func getCounts(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counts, err := store.CountsByStatus()
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(counts)
	})
}

// GET /v1/jobs/:id
func getJob(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := getJobRoute.FindStringSubmatch(r.URL.Path)[1]
		id, wroteResponse := getId(w, r, idStr)
		if wroteResponse == true {
			return
		}
		job, err := store.Get(id)
		if err == syncjobs.ErrNotFound {
			notFound(w, new404(r))
			go metrics.Increment("job.get.not_found")
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(job)
		go metrics.Increment("job.get.success")
	})
}

// POST /v1/jobs/:id/requeue
//
// Move a failed job back to pending so the next pass picks it up.
func requeueJob(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := requeueRoute.FindStringSubmatch(r.URL.Path)[1]
		id, wroteResponse := getId(w, r, idStr)
		if wroteResponse == true {
			return
		}
		job, err := services.RequeueJob(store, id)
		if err == syncjobs.ErrNotFound {
			notFound(w, new404(r))
			return
		}
		if err != nil {
			badRequest(w, r, &rest.Error{
				ID:       "invalid_requeue",
				Title:    err.Error(),
				Instance: r.URL.Path,
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(job)
		go metrics.Increment("job.requeue.success")
	})
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// DELETE /v1/jobs/completed
//
// Clear synced history.
func deleteCompleted(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := store.DeleteCompleted()
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(deletedResponse{Deleted: count})
		go metrics.Increment("jobs.delete_completed.success")
	})
}

// DELETE /v1/jobs
//
// Empty the queue, pending jobs included. The local mutations those jobs
// were recording are abandoned.
func deleteAll(store *syncjobs.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := store.DeleteAll()
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(deletedResponse{Deleted: count})
		go metrics.Increment("jobs.delete_all.success")
	})
}

// POST /v1/sync
//
// Ask the scheduler for an immediate drain pass. The pass runs in the
// background; poll /v1/jobs/counts to watch it drain.
func triggerSync(trigger Trigger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trigger.Trigger()
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
		}{Status: "scheduled"})
		go metrics.Increment("sync.trigger.success")
	})
}
