package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type RecordService struct {
	Client *Client
}

// Create makes a request to /api/collections/:collection/records with the
// record payload. The backend assigns the record id, so there is no positive
// return value, only nil if the response was a 2xx status code.
func (r *RecordService) Create(collection string, payload json.RawMessage) error {
	if collection == "" {
		return errors.New("no collection to create a record in")
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	req, err := r.Client.NewRequest("POST", fmt.Sprintf("/api/collections/%s/records", collection), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return r.Client.Do(req, nil)
}

// Update makes a PATCH request to /api/collections/:collection/records/:id,
// replacing the named fields with the payload's values.
func (r *RecordService) Update(collection, recordID string, payload json.RawMessage) error {
	if collection == "" || recordID == "" {
		return errors.New("no record to update")
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	req, err := r.Client.NewRequest("PATCH", fmt.Sprintf("/api/collections/%s/records/%s", collection, recordID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return r.Client.Do(req, nil)
}

// Delete makes a DELETE request to /api/collections/:collection/records/:id.
// The backend responds with a 204 and an empty body.
func (r *RecordService) Delete(collection, recordID string) error {
	if collection == "" || recordID == "" {
		return errors.New("no record to delete")
	}
	req, err := r.Client.NewRequest("DELETE", fmt.Sprintf("/api/collections/%s/records/%s", collection, recordID), nil)
	if err != nil {
		return err
	}
	return r.Client.Do(req, nil)
}

// Monetary fields on a monthly allocation that older clients addressed with
// the backend's "field+"/"field-" increment operators.
var allocationAmountFields = []string{"solde", "depense", "alloue", "pretAPlacer"}

// NormalizeAllocationUpdate rewrites a monthly-allocation update payload so
// that every amount is sent as an absolute value. Increment-operator keys
// such as "solde+" are renamed to their plain field; the caller is expected
// to have computed the final value already. Payloads without operator keys
// pass through unchanged.
func NormalizeAllocationUpdate(payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	changed := false
	for _, name := range allocationAmountFields {
		for _, op := range []string{"+", "-"} {
			if val, ok := fields[name+op]; ok {
				fields[name] = val
				delete(fields, name+op)
				changed = true
			}
		}
	}
	if !changed {
		return payload, nil
	}
	return json.Marshal(fields)
}
