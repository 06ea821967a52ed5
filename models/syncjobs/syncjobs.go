// Logic for interacting with the "sync_jobs" table.
package syncjobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shyp/go-types"

	"github.com/XBurnsX/toutiebudget-sync/models"
)

const Prefix = "job_"

// ErrNotFound indicates that the job was not found.
var ErrNotFound = errors.New("Sync job not found")

// InvalidTransitionError is returned when a status update would move a job
// along a path the lifecycle does not allow, e.g. failed straight to
// completed without a new delivery attempt.
type InvalidTransitionError struct {
	From models.JobStatus
	To   models.JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Cannot move job from status %s to %s", e.From, e.To)
}

const schema = `-- syncjobs.schema
CREATE TABLE IF NOT EXISTS sync_jobs (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	action TEXT NOT NULL CHECK (action IN ('create', 'update', 'delete')),
	entity_id TEXT NOT NULL,
	record_id TEXT NOT NULL DEFAULT '',
	collection TEXT NOT NULL,
	payload TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending', 'in-progress', 'completed', 'failed')),
	retry_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at INTEGER NOT NULL,
	last_attempt_at INTEGER,
	completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sync_jobs_status_created ON sync_jobs(status, created_at);
`

// EnqueueParams describe one local mutation to replay against the backend.
// The payload is the caller's snapshot of the remote field values; it is
// stored verbatim and never recomputed.
type EnqueueParams struct {
	EntityType models.EntityType
	Action     models.JobAction
	EntityID   string
	RecordID   string
	Collection string
	Payload    json.RawMessage
}

// Store is a durable queue of sync jobs on top of a local SQLite database.
// All methods are safe for concurrent use; SQLite serializes the writes.
type Store struct {
	conn *sql.DB

	enqueueStmt         *sql.Stmt
	getStmt             *sql.Stmt
	listPendingStmt     *sql.Stmt
	listByStatusStmt    *sql.Stmt
	listAllStmt         *sql.Stmt
	deleteCompletedStmt *sql.Stmt
	deleteAllStmt       *sql.Stmt
	countByStatusStmt   *sql.Stmt
	countsStmt          *sql.Stmt
	oldInProgressStmt   *sql.Stmt
}

// New creates the sync_jobs table if needed and prepares all queries.
func New(conn *sql.DB) (*Store, error) {
	if conn == nil {
		return nil, errors.New("syncjobs: no DB connection was established, can't query")
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, err
	}
	s := &Store{conn: conn}

	var err error
	query := fmt.Sprintf(`-- syncjobs.Enqueue
INSERT INTO sync_jobs (%s)
VALUES (?, ?, ?, ?, ?, ?, ?, '%s', 0, NULL, ?, NULL, NULL)`, fields(), models.StatusPending)
	if s.enqueueStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`-- syncjobs.Get
SELECT %s FROM sync_jobs WHERE id = ?`, fields())
	if s.getStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`-- syncjobs.ListPendingAndFailed
SELECT %s FROM sync_jobs
WHERE status IN ('%s', '%s')
ORDER BY created_at ASC, id ASC`, fields(), models.StatusPending, models.StatusFailed)
	if s.listPendingStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`-- syncjobs.ListByStatus
SELECT %s FROM sync_jobs WHERE status = ? ORDER BY created_at ASC, id ASC`, fields())
	if s.listByStatusStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`-- syncjobs.ListAll
SELECT %s FROM sync_jobs ORDER BY created_at ASC, id ASC`, fields())
	if s.listAllStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`-- syncjobs.DeleteCompleted
DELETE FROM sync_jobs WHERE status = '%s'`, models.StatusCompleted)
	if s.deleteCompletedStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = `-- syncjobs.DeleteAll
DELETE FROM sync_jobs`
	if s.deleteAllStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = `-- syncjobs.CountByStatus
SELECT count(*) FROM sync_jobs WHERE status = ?`
	if s.countByStatusStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = `-- syncjobs.CountsByStatus
SELECT status, count(*) FROM sync_jobs GROUP BY status`
	if s.countsStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`-- syncjobs.GetOldInProgress
SELECT %s FROM sync_jobs WHERE status = '%s' AND last_attempt_at < ?
ORDER BY created_at ASC`, fields(), models.StatusInProgress)
	if s.oldInProgressStmt, err = conn.Prepare(query); err != nil {
		return nil, err
	}

	return s, nil
}

// Enqueue inserts a new pending sync job with the given ID and fields.
// CreatedAt is stamped here; the job is immutable afterwards apart from its
// status, retry bookkeeping and error message.
func (s *Store) Enqueue(id types.PrefixUUID, p EnqueueParams) (*models.SyncJob, error) {
	return s.enqueue(s.enqueueStmt, id, p)
}

// EnqueueTx is Enqueue inside the caller's transaction, so a domain write and
// its sync job can commit or roll back as one unit.
func (s *Store) EnqueueTx(tx *sql.Tx, id types.PrefixUUID, p EnqueueParams) (*models.SyncJob, error) {
	return s.enqueue(tx.Stmt(s.enqueueStmt), id, p)
}

func (s *Store) enqueue(stmt *sql.Stmt, id types.PrefixUUID, p EnqueueParams) (*models.SyncJob, error) {
	if id.UUID == types.NilUUID.UUID {
		return nil, errors.New("syncjobs: invalid id")
	}
	switch p.Action {
	case models.ActionCreate, models.ActionUpdate, models.ActionDelete:
	default:
		return nil, fmt.Errorf("syncjobs: unknown action %q", p.Action)
	}
	payload := p.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	createdAt := time.Now().UTC()
	_, err := stmt.Exec(Prefix+id.UUID.String(), p.EntityType, p.Action, p.EntityID,
		p.RecordID, p.Collection, []byte(payload), createdAt.UnixNano())
	if err != nil {
		return nil, err
	}
	return &models.SyncJob{
		ID:         types.PrefixUUID{Prefix: Prefix, UUID: id.UUID},
		EntityType: p.EntityType,
		Action:     p.Action,
		EntityID:   p.EntityID,
		RecordID:   p.RecordID,
		Collection: p.Collection,
		Payload:    payload,
		Status:     models.StatusPending,
		CreatedAt:  createdAt,
	}, nil
}

// Get the sync job with the given id. If no record could be found, the error
// will be `syncjobs.ErrNotFound`.
func (s *Store) Get(id types.PrefixUUID) (*models.SyncJob, error) {
	if id.UUID == types.NilUUID.UUID {
		return nil, errors.New("syncjobs: invalid id")
	}
	qj, err := scanJob(s.getStmt.QueryRow(Prefix + id.UUID.String()))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return qj, err
}

// ListPendingAndFailed returns every job a drain pass should attempt, oldest
// first. Retried and fresh jobs share the same queue; there is no priority.
func (s *Store) ListPendingAndFailed() ([]*models.SyncJob, error) {
	return collect(s.listPendingStmt.Query())
}

// ListByStatus returns all jobs with the given status, oldest first.
func (s *Store) ListByStatus(status models.JobStatus) ([]*models.SyncJob, error) {
	return collect(s.listByStatusStmt.Query(status))
}

// ListAll returns the full job history, oldest first. Completed and failed
// jobs stay in the table until a user clears them, so this is the inspector's
// main view.
func (s *Store) ListAll() ([]*models.SyncJob, error) {
	return collect(s.listAllStmt.Query())
}

// UpdateStatus moves a job to the given status and applies the side effects
// that belong to it: in-progress stamps last_attempt_at, completed stamps
// completed_at and clears the error, failed records errMessage and increments
// retry_count, pending (a requeue) clears the error. Setting the status a job
// already has is a no-op. An InvalidTransitionError is returned for any move
// models.CanTransition forbids.
func (s *Store) UpdateStatus(id types.PrefixUUID, status models.JobStatus, errMessage string) error {
	if id.UUID == types.NilUUID.UUID {
		return errors.New("syncjobs: invalid id")
	}
	key := Prefix + id.UUID.String()
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.JobStatus
	err = tx.QueryRow(`-- syncjobs.UpdateStatus.get
SELECT status FROM sync_jobs WHERE id = ?`, key).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current == status {
		// Idempotent: already there, leave timestamps and counters alone.
		return nil
	}
	if !models.CanTransition(current, status) {
		return &InvalidTransitionError{From: current, To: status}
	}

	now := time.Now().UTC().UnixNano()
	switch status {
	case models.StatusInProgress:
		_, err = tx.Exec(`-- syncjobs.UpdateStatus.inProgress
UPDATE sync_jobs SET status = ?, last_attempt_at = ? WHERE id = ?`, status, now, key)
	case models.StatusCompleted:
		_, err = tx.Exec(`-- syncjobs.UpdateStatus.completed
UPDATE sync_jobs SET status = ?, completed_at = ?, error_message = NULL WHERE id = ?`, status, now, key)
	case models.StatusFailed:
		_, err = tx.Exec(`-- syncjobs.UpdateStatus.failed
UPDATE sync_jobs SET status = ?, error_message = ?, retry_count = retry_count + 1 WHERE id = ?`,
			status, errMessage, key)
	case models.StatusPending:
		_, err = tx.Exec(`-- syncjobs.UpdateStatus.pending
UPDATE sync_jobs SET status = ?, error_message = NULL WHERE id = ?`, status, key)
	default:
		return fmt.Errorf("syncjobs: unknown status %q", status)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCompleted removes all completed jobs. User-triggered only; the worker
// never deletes history.
func (s *Store) DeleteCompleted() (int64, error) {
	res, err := s.deleteCompletedStmt.Exec()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAll empties the queue, including pending jobs. User-triggered only.
func (s *Store) DeleteAll() (int64, error) {
	res, err := s.deleteAllStmt.Exec()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of jobs with the given status.
func (s *Store) CountByStatus(status models.JobStatus) (int, error) {
	var count int
	err := s.countByStatusStmt.QueryRow(status).Scan(&count)
	return count, err
}

// CountsByStatus returns a map of status to job count, for the inspector's
// statistics view. Statuses with zero jobs are omitted.
func (s *Store) CountsByStatus() (map[models.JobStatus]int64, error) {
	rows, err := s.countsStmt.Query()
	m := make(map[models.JobStatus]int64)
	if err != nil {
		return m, err
	}
	defer rows.Close()
	for rows.Next() {
		var status models.JobStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return m, err
		}
		m[status] = count
	}
	return m, rows.Err()
}

// GetOldInProgress finds in-progress jobs whose last attempt started before
// olderThan. A pass that died mid-job leaves rows like this behind.
func (s *Store) GetOldInProgress(olderThan time.Time) ([]*models.SyncJob, error) {
	return collect(s.oldInProgressStmt.Query(olderThan.UnixNano()))
}

func fields() string {
	return `id,
	entity_type,
	action,
	entity_id,
	record_id,
	collection,
	payload,
	status,
	retry_count,
	error_message,
	created_at,
	last_attempt_at,
	completed_at`
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJob reads one sync_jobs row. The id is stored as prefixed text and
// timestamps as Unix nanoseconds, so a few columns go through intermediates.
func scanJob(r rowScanner) (*models.SyncJob, error) {
	qj := new(models.SyncJob)
	var idStr string
	var payload []byte
	var errMessage sql.NullString
	var createdAt int64
	var lastAttemptAt, completedAt sql.NullInt64
	err := r.Scan(&idStr, &qj.EntityType, &qj.Action, &qj.EntityID, &qj.RecordID,
		&qj.Collection, &payload, &qj.Status, &qj.RetryCount, &errMessage,
		&createdAt, &lastAttemptAt, &completedAt)
	if err != nil {
		return nil, err
	}
	qj.ID, err = types.NewPrefixUUID(idStr)
	if err != nil {
		return nil, err
	}
	qj.Payload = json.RawMessage(payload)
	qj.ErrorMessage = errMessage.String
	qj.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastAttemptAt.Valid {
		qj.LastAttemptAt = types.NullTime{Valid: true, Time: time.Unix(0, lastAttemptAt.Int64).UTC()}
	}
	if completedAt.Valid {
		qj.CompletedAt = types.NullTime{Valid: true, Time: time.Unix(0, completedAt.Int64).UTC()}
	}
	return qj, nil
}

func collect(rows *sql.Rows, err error) ([]*models.SyncJob, error) {
	var jobs []*models.SyncJob
	if err != nil {
		return jobs, err
	}
	defer rows.Close()
	for rows.Next() {
		qj, err := scanJob(rows)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, qj)
	}
	return jobs, rows.Err()
}
