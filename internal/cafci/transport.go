package cafci

import "net/http"

// headerTransport stamps the browser-like site context upstream requires on
// every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func newHeaderTransport(base http.RoundTripper, cfg Config) *headerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	h := http.Header{}
	h.Set("User-Agent", cfg.UserAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")
	if cfg.Origin != "" {
		h.Set("Origin", cfg.Origin)
	}
	if cfg.Referer != "" {
		h.Set("Referer", cfg.Referer)
	}
	return &headerTransport{base: base, headers: h}
}

// RoundTrip implements http.RoundTripper. The request is cloned so callers'
// requests are never mutated.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header[k] = v
		}
	}
	return t.base.RoundTrip(r)
}
