// Shared model types for the sync queue.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shyp/go-types"
)

// EntityType identifies the kind of domain record a sync job mutates. The set
// is closed: the collection resolver does an exhaustive switch over these
// values, so a new entity kind that isn't mapped fails to compile instead of
// failing at sync time.
type EntityType string

const (
	EntityCompteCheque         = EntityType("COMPTE_CHEQUE")
	EntityCompteCredit         = EntityType("COMPTE_CREDIT")
	EntityCompteDette          = EntityType("COMPTE_DETTE")
	EntityCompteInvestissement = EntityType("COMPTE_INVESTISSEMENT")
	EntityTransaction          = EntityType("TRANSACTION")
	EntityEnveloppe            = EntityType("ENVELOPPE")
	EntityCategorie            = EntityType("CATEGORIE")
	EntityAllocationMensuelle  = EntityType("ALLOCATION_MENSUELLE")
	EntityTiers                = EntityType("TIERS")
	EntityPretPersonnel        = EntityType("PRET_PERSONNEL")
)

// JobAction is the remote mutation a sync job describes. Immutable once the
// job has been enqueued.
type JobAction string

const ActionCreate = JobAction("create")
const ActionUpdate = JobAction("update")
const ActionDelete = JobAction("delete")

type JobStatus string

// StatusPending indicates a SyncJob is waiting to be pushed to the remote
// backend on the next drain pass.
const StatusPending = JobStatus("pending")

// StatusInProgress indicates the sync worker is pushing the job right now.
const StatusInProgress = JobStatus("in-progress")

// StatusCompleted indicates the remote backend accepted the mutation.
const StatusCompleted = JobStatus("completed")

// StatusFailed indicates the last delivery attempt failed; the job will be
// retried on the next drain pass.
const StatusFailed = JobStatus("failed")

// Terminal reports whether no further automatic transition leaves the status.
// Failed jobs are not terminal - the worker picks them up again.
func (j JobStatus) Terminal() bool {
	return j == StatusCompleted
}

// CanTransition reports whether a job may move from one status to another.
// Writing the same status twice is allowed (and a no-op at the store layer).
// A failed job may be requeued or re-attempted, but never marked completed
// without going through in-progress again.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		// in-progress -> pending is the stuck-job reset after a crashed pass
		return to == StatusCompleted || to == StatusFailed || to == StatusPending
	case StatusFailed:
		return to == StatusPending || to == StatusInProgress
	case StatusCompleted:
		return false
	}
	return false
}

// A SyncJob is one pending remote mutation: a snapshot of a local write that
// still has to be replayed against the backend. The payload is captured at
// enqueue time and never recomputed, so it reflects the domain state when the
// local mutation happened.
type SyncJob struct {
	ID            types.PrefixUUID `json:"id"`
	EntityType    EntityType       `json:"entity_type"`
	Action        JobAction        `json:"action"`
	EntityID      string           `json:"entity_id"`
	RecordID      string           `json:"record_id"`
	Collection    string           `json:"collection"`
	Payload       json.RawMessage  `json:"payload"`
	Status        JobStatus        `json:"status"`
	RetryCount    int              `json:"retry_count"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	LastAttemptAt types.NullTime   `json:"last_attempt_at"`
	CompletedAt   types.NullTime   `json:"completed_at"`
}

// Scan implements the Scanner interface.
func (j *JobStatus) Scan(src interface{}) error {
	if src == nil {
		return nil
	} else if txt, ok := src.(string); ok {
		*j = JobStatus(txt)
		return nil
	} else if txt, ok := src.([]byte); ok {
		*j = JobStatus(string(txt))
		return nil
	}
	return fmt.Errorf("Unsupported JobStatus: %#v", src)
}

func (j JobStatus) Value() (driver.Value, error) {
	return string(j), nil
}

// Scan implements the Scanner interface.
func (a *JobAction) Scan(src interface{}) error {
	if src == nil {
		return nil
	} else if txt, ok := src.(string); ok {
		*a = JobAction(txt)
		return nil
	} else if txt, ok := src.([]byte); ok {
		*a = JobAction(string(txt))
		return nil
	}
	return fmt.Errorf("Unsupported JobAction: %#v", src)
}

func (a JobAction) Value() (driver.Value, error) {
	return string(a), nil
}

// Scan implements the Scanner interface.
func (t *EntityType) Scan(src interface{}) error {
	if src == nil {
		return nil
	} else if txt, ok := src.(string); ok {
		*t = EntityType(txt)
		return nil
	} else if txt, ok := src.([]byte); ok {
		*t = EntityType(string(txt))
		return nil
	}
	return fmt.Errorf("Unsupported EntityType: %#v", src)
}

func (t EntityType) Value() (driver.Value, error) {
	return string(t), nil
}
