package transport

import "net/http"

// OriginPolicy is the browser origin allow-list. An empty list allows every origin.
type OriginPolicy struct {
	allowed map[string]struct{}
}

func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		p.allowed[o] = struct{}{}
	}
	return p
}

// Allowed reports whether origin may connect. Requests without an Origin
// header are not from a browser and are always allowed.
func (p OriginPolicy) Allowed(origin string) bool {
	if origin == "" || len(p.allowed) == 0 {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

func (p OriginPolicy) checkRequest(r *http.Request) bool {
	return p.Allowed(r.Header.Get("Origin"))
}

// applyCORS writes CORS headers for an allowed origin and reports whether the request may proceed.
func (p OriginPolicy) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if !p.Allowed(origin) {
		return false
	}
	if origin != "" {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Add("Vary", "Origin")
	}
	return true
}
