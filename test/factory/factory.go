// Package factory contains helpers for instantiating tests.
package factory

import (
	"encoding/json"
	"testing"

	"github.com/Shyp/go-types"
	"github.com/google/uuid"

	"github.com/XBurnsX/toutiebudget-sync/models"
	"github.com/XBurnsX/toutiebudget-sync/models/syncjobs"
)

var EmptyPayload = json.RawMessage("{}")

// TransactionPayload mirrors the remote "transactions" collection fields.
var TransactionPayload = json.RawMessage(`{"montant": 42.50, "compte_id": "c1"}`)

// JobId is a fixed id for tests that need a stable value.
var JobId types.PrefixUUID

func init() {
	id, _ := types.NewPrefixUUID("job_6740b44e-13b9-475d-af06-979627e0e0d6")
	JobId = id
}

// RandomId returns a random UUID with the given prefix.
func RandomId(prefix string) types.PrefixUUID {
	return types.GenerateUUID(prefix)
}

// RandomEntityID returns a plain UUID string, the shape local domain ids have.
func RandomEntityID() string {
	return uuid.NewString()
}

// SampleParams are enqueue parameters for a transaction create.
func SampleParams() syncjobs.EnqueueParams {
	return syncjobs.EnqueueParams{
		EntityType: models.EntityTransaction,
		Action:     models.ActionCreate,
		EntityID:   RandomEntityID(),
		Collection: "transactions",
		Payload:    TransactionPayload,
	}
}

// CreateSyncJob enqueues a job built from SampleParams with the given
// overrides applied, and returns it.
func CreateSyncJob(t testing.TB, store *syncjobs.Store, override func(*syncjobs.EnqueueParams)) *models.SyncJob {
	t.Helper()
	p := SampleParams()
	if override != nil {
		override(&p)
	}
	qj, err := store.Enqueue(RandomId(""), p)
	if err != nil {
		t.Fatal(err)
	}
	return qj
}
