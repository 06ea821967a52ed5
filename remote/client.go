package remote

import (
	"github.com/XBurnsX/toutiebudget-sync/rest"
)

// The remote Client is an API client for the hosted backend that stores all
// budget records. Every queued mutation maps to one call on the Records
// service.
type Client struct {
	*rest.Client

	Records *RecordService
}

// NewClient creates a new Client authenticating with the given bearer token
// against base (scheme+domain, no trailing slash).
func NewClient(token, base string) *Client {
	c := &Client{rest.NewClient(token, base), nil}
	c.Records = &RecordService{Client: c}
	return c
}
