// Package services contains the business logic tying the job store, the
// worker and the HTTP API together.
package services

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Shyp/go-simple-metrics"
	"github.com/Shyp/go-types"
	"github.com/XBurnsX/toutiebudget-sync/collections"
	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
)

// MutationParams describe one local mutation to record for replay. RecordID
// may be empty for creates, and for updates/deletes whose payload carries the
// record id.
type MutationParams struct {
	EntityType models.EntityType
	Action     models.JobAction
	EntityID   string
	RecordID   string
	Payload    json.RawMessage
}

// EnqueueMutation records a local mutation as a pending sync job. The
// collection name is resolved and stored on the job now, so a rename of the
// mapping later never re-routes jobs that were already queued.
func EnqueueMutation(store *syncjobs.Store, p MutationParams) (*models.SyncJob, error) {
	id, enqueueParams, err := prepare(p)
	if err != nil {
		return nil, err
	}
	job, err := store.Enqueue(id, enqueueParams)
	if err != nil {
		return nil, err
	}
	go metrics.Increment(fmt.Sprintf("enqueue.%s.%s", p.Action, p.EntityType))
	return job, nil
}

// EnqueueMutationTx is EnqueueMutation inside the caller's transaction, so
// the domain write and its sync job commit or roll back as one unit.
func EnqueueMutationTx(store *syncjobs.Store, tx *sql.Tx, p MutationParams) (*models.SyncJob, error) {
	id, enqueueParams, err := prepare(p)
	if err != nil {
		return nil, err
	}
	job, err := store.EnqueueTx(tx, id, enqueueParams)
	if err != nil {
		return nil, err
	}
	go metrics.Increment(fmt.Sprintf("enqueue.%s.%s", p.Action, p.EntityType))
	return job, nil
}

func prepare(p MutationParams) (types.PrefixUUID, syncjobs.EnqueueParams, error) {
	collection, err := collections.Name(p.EntityType)
	if err != nil {
		return types.PrefixUUID{}, syncjobs.EnqueueParams{}, err
	}
	id := types.GenerateUUID("")
	return id, syncjobs.EnqueueParams{
		EntityType: p.EntityType,
		Action:     p.Action,
		EntityID:   p.EntityID,
		RecordID:   p.RecordID,
		Collection: collection,
		Payload:    p.Payload,
	}, nil
}
