// A small http.Handler that routes on regular expressions, since the job
// routes embed prefixed ids that http.ServeMux patterns can't express.
package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

type route struct {
	pattern *regexp.Regexp
	methods []string
	handler http.Handler
}

func (rt *route) allows(method string) bool {
	for _, m := range rt.methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// RegexpHandler dispatches to the first registered route whose pattern
// matches the request path. Register more specific patterns first.
type RegexpHandler struct {
	routes []*route
}

func (h *RegexpHandler) Handler(pattern *regexp.Regexp, methods []string, handler http.Handler) {
	h.routes = append(h.routes, &route{
		pattern: pattern,
		methods: methods,
		handler: handler,
	})
}

func (h *RegexpHandler) HandleFunc(pattern *regexp.Regexp, methods []string, handler func(http.ResponseWriter, *http.Request)) {
	h.Handler(pattern, methods, http.HandlerFunc(handler))
}

func (h *RegexpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, rt := range h.routes {
		if !rt.pattern.MatchString(r.URL.Path) {
			continue
		}
		if rt.allows(r.Method) {
			rt.handler.ServeHTTP(w, r)
		} else if strings.ToUpper(r.Method) == "OPTIONS" {
			w.Header().Set("Allow", strings.Join(append(rt.methods, "OPTIONS"), ", "))
		} else {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(new405(r))
		}
		return
	}
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(new404(r))
}
