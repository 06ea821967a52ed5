// Setup helps initialize applications.
package setup

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/db"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
)

var mu sync.Mutex

var conn *sql.DB
var store *syncjobs.Store

// Store connects to the local database with the given connector, creates the
// schema if needed and prepares all queries. Calling it twice returns the
// same store.
func Store(connector db.Connector) (*syncjobs.Store, error) {
	mu.Lock()
	defer mu.Unlock()
	if store != nil {
		if err := conn.Ping(); err == nil {
			// Already connected.
			return store, nil
		}
	}
	c, err := connector.Connect()
	if err != nil {
		return nil, errors.New("Could not establish a database connection: " + err.Error())
	}
	s, err := syncjobs.New(c)
	if err != nil {
		return nil, err
	}
	conn = c
	store = s
	return store, nil
}

// MeasureQueueDepth periodically reports how many jobs are waiting for a
// drain pass.
func MeasureQueueDepth(s *syncjobs.Store, interval time.Duration) {
	for range time.Tick(interval) {
		pending, err := s.CountByStatus(models.StatusPending)
		if err != nil {
			go metrics.Increment("queue_depth.error")
			continue
		}
		failed, err := s.CountByStatus(models.StatusFailed)
		if err != nil {
			go metrics.Increment("queue_depth.error")
			continue
		}
		go metrics.Measure("queue_depth.pending", int64(pending))
		go metrics.Measure("queue_depth.failed", int64(failed))
		go metrics.Measure("queue_depth.ready", int64(pending+failed))
	}
}

// MeasureInProgressJobs periodically reports how many jobs a pass is
// holding in-progress.
func MeasureInProgressJobs(s *syncjobs.Store, interval time.Duration) {
	for range time.Tick(interval) {
		count, err := s.CountByStatus(models.StatusInProgress)
		if err == nil {
			go metrics.Measure("sync_jobs.in_progress", int64(count))
		} else {
			go metrics.Increment("sync_jobs.in_progress.error")
		}
	}
}
