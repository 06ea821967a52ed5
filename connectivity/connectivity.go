// Package connectivity answers one question for the sync worker: is the
// device online right now? A drain pass that starts offline is pointless and
// would only burn retry counts, so the worker probes before touching the
// queue.
package connectivity

import (
	"net"
	"net/http"
	"time"
)

const probeTimeout = 5 * time.Second

// A Checker reports whether the network is reachable. Implementations should
// return quickly; the worker calls this at the top of every drain pass.
type Checker interface {
	Online() bool
}

// HTTPChecker probes a URL with a GET request and treats any 2xx response as
// online. Point it at the backend's health route so "online" also means "the
// backend is reachable", not just "some network exists".
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

// NewHTTPChecker creates a checker probing the given URL with a short
// timeout, so a dead network fails a pass in seconds instead of minutes.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL: url,
		Client: &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: probeTimeout}).DialContext,
			},
		},
	}
}

func (h *HTTPChecker) Online() bool {
	res, err := h.Client.Get(h.URL)
	if err != nil {
		return false
	}
	res.Body.Close()
	return res.StatusCode >= 200 && res.StatusCode <= 299
}

// Always reports a fixed connectivity state. Used in tests.
type Always bool

func (a Always) Online() bool {
	return bool(a)
}
