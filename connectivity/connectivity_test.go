package connectivity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/XBurnsX/toutiebudget-sync/test"
)

func TestOnline(t *testing.T) {
	t.Parallel()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()
	c := NewHTTPChecker(s.URL)
	test.Assert(t, c.Online(), "expected a 200 probe to count as online")
}

func TestOfflineOn500(t *testing.T) {
	t.Parallel()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()
	c := NewHTTPChecker(s.URL)
	test.Assert(t, !c.Online(), "expected a 500 probe to count as offline")
}

func TestOfflineOnDialError(t *testing.T) {
	t.Parallel()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	s.Close()
	c := NewHTTPChecker(s.URL)
	test.Assert(t, !c.Online(), "expected a refused connection to count as offline")
}
