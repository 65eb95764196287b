package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeUpstream is an httptest server speaking the CAFCI routes used by the
// sync pipeline. Unknown classes answer with an empty data body.
type FakeUpstream struct {
	Server *httptest.Server

	mu      sync.Mutex
	master  string
	details map[string]string
	status  map[string][]int
	hits    map[string]int
}

// NewFakeUpstream starts a fake upstream. It is closed when the test completes.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()

	u := &FakeUpstream{
		master:  `{"data":[]}`,
		details: make(map[string]string),
		status:  make(map[string][]int),
		hits:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/fondo", u.serveMaster)
	r.Get("/fondo/{fundId}/clase/{classId}/ficha", u.serveDetail)
	u.Server = httptest.NewServer(r)
	t.Cleanup(u.Server.Close)

	return u
}

// URL returns the base URL of the server.
func (u *FakeUpstream) URL() string {
	return u.Server.URL
}

// WithMaster sets the master list body.
func (u *FakeUpstream) WithMaster(body string) *FakeUpstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.master = body
	return u
}

// WithDetail sets the detail body of classID.
func (u *FakeUpstream) WithDetail(classID, body string) *FakeUpstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.details[classID] = body
	return u
}

// WithStatuses queues status codes answered, one per request, before the
// detail body of classID is served.
func (u *FakeUpstream) WithStatuses(classID string, codes ...int) *FakeUpstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status[classID] = append(u.status[classID], codes...)
	return u
}

// Hits returns the number of detail requests seen for classID.
func (u *FakeUpstream) Hits(classID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[classID]
}

func (u *FakeUpstream) serveMaster(w http.ResponseWriter, _ *http.Request) {
	u.mu.Lock()
	body := u.master
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (u *FakeUpstream) serveDetail(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classId")

	u.mu.Lock()
	u.hits[classID]++
	var code int
	if q := u.status[classID]; len(q) > 0 {
		code, u.status[classID] = q[0], q[1:]
	}
	body, ok := u.details[classID]
	u.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		return
	}
	if !ok {
		body = `{"data":null}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
