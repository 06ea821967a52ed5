// Package urls picks which backend base URL the sync worker should talk to.
// The backend is reachable over more than one address (LAN address at home,
// public address elsewhere), and which one works changes as the device moves
// between networks.
package urls

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 3 * time.Second

// How long a resolved base URL stays valid before the candidates are probed
// again.
const cacheTTL = 60 * time.Second

// ErrNoReachableURL is returned when none of the candidate base URLs answers
// its health probe.
var ErrNoReachableURL = errors.New("urls: no reachable base URL")

// A Resolver returns the base URL to use for backend requests.
type Resolver interface {
	ActiveBaseURL() (string, error)
}

// Static always resolves to a fixed base URL. Used in tests and single-URL
// deployments.
type Static string

func (s Static) ActiveBaseURL() (string, error) {
	return string(s), nil
}

// CandidateResolver probes an ordered list of base URLs and returns the
// first one whose /api/health route answers 2xx. The result is cached for a
// short TTL so a drain pass over many jobs probes once, not per job.
type CandidateResolver struct {
	Candidates []string
	Client     *http.Client

	// test hook
	now func() time.Time

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
}

// NewCandidateResolver creates a resolver trying the given base URLs in
// order. Put the preferred (fastest) address first.
func NewCandidateResolver(candidates ...string) *CandidateResolver {
	return &CandidateResolver{
		Candidates: candidates,
		Client: &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: probeTimeout}).DialContext,
			},
		},
		now: time.Now,
	}
}

// ActiveBaseURL returns the first candidate that answers its health probe,
// or ErrNoReachableURL if none do. A cached answer is reused for up to a
// minute; an error is never cached.
func (c *CandidateResolver) ActiveBaseURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != "" && c.now().Sub(c.cachedAt) < cacheTTL {
		return c.cached, nil
	}
	for _, base := range c.Candidates {
		if c.probe(base) {
			c.cached = base
			c.cachedAt = c.now()
			return base, nil
		}
	}
	c.cached = ""
	return "", ErrNoReachableURL
}

// Invalidate drops the cached base URL so the next call probes again.
// Callers should invalidate after a request to the cached URL fails at the
// transport level.
func (c *CandidateResolver) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = ""
}

func (c *CandidateResolver) probe(base string) bool {
	res, err := c.Client.Get(base + "/api/health")
	if err != nil {
		return false
	}
	res.Body.Close()
	return res.StatusCode >= 200 && res.StatusCode <= 299
}
