package volt_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	volt "github.com/voltagegpu/volt-go"
)

// mustEncode encodes v as JSON and writes it to w.
// Panics on error - safe in tests since errors indicate test bugs.
func mustEncode(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("failed to encode response: " + err.Error())
	}
}

// mustDecode decodes JSON from r.Body into v.
// Panics on error - safe in tests since errors indicate test bugs.
func mustDecode(r *http.Request, v interface{}) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		panic("failed to decode request: " + err.Error())
	}
}

// newTestClient creates a client for baseURL that ignores the environment
// and config file and retries quickly.
func newTestClient(t *testing.T, baseURL string, opts ...volt.Option) *volt.Client {
	t.Helper()
	base := []volt.Option{
		volt.WithCredentialSources(),
		volt.WithAPIKey("test-key"),
		volt.WithBaseURL(baseURL),
		volt.WithRetryWait(time.Millisecond, 5*time.Millisecond),
	}
	client, err := volt.NewClient(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// fastWait polls every few milliseconds without jitter.
func fastWait(timeout time.Duration) volt.WaitOptions {
	return volt.WaitOptions{PollInterval: 5 * time.Millisecond, Timeout: timeout, Jitter: -1}
}

type fakePod struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	GPUType    string  `json:"gpuType"`
	GPUCount   int     `json:"gpuCount"`
	TemplateID string  `json:"templateId"`
	SSHHost    string  `json:"sshHost,omitempty"`
	SSHPort    int     `json:"sshPort,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	Price      float64 `json:"hourlyPrice"`

	reads int
}

// fakeProvider is an in-memory VoltageGPU backend.
//
// A created pod stays "creating" until it has been read runAfter times;
// with runAfter < 0 it never leaves "creating". Stopping takes one read.
type fakeProvider struct {
	mu       sync.Mutex
	pods     map[string]*fakePod
	order    []string
	nextID   int
	runAfter int
	calls    []string
}

func newFakeProvider(t *testing.T, runAfter int) (*fakeProvider, *httptest.Server) {
	t.Helper()
	f := &fakeProvider{pods: map[string]*fakePod{}, runAfter: runAfter}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /volt/pods", f.list)
	mux.HandleFunc("POST /volt/pods", f.create)
	mux.HandleFunc("GET /volt/pods/{id}", f.get)
	mux.HandleFunc("DELETE /volt/pods/{id}", f.delete)
	mux.HandleFunc("POST /volt/pods/{id}/start", f.action("starting"))
	mux.HandleFunc("POST /volt/pods/{id}/stop", f.action("stopping"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

// count returns how many requests matched method and path.
func (f *fakeProvider) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method+" "+path {
			n++
		}
	}
	return n
}

func (f *fakeProvider) countMethod(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) > len(method) && c[:len(method)+1] == method+" " {
			n++
		}
	}
	return n
}

// seed adds a pod directly.
func (f *fakeProvider) seed(p fakePod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.CreatedAt == "" {
		p.CreatedAt = "2025-01-01T00:00:00Z"
	}
	f.pods[p.ID] = &p
	f.order = append(f.order, p.ID)
}

func (f *fakeProvider) notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	mustEncode(w, map[string]string{"error": "pod not found"})
}

func (f *fakeProvider) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pods := make([]fakePod, 0, len(f.order))
	for _, id := range f.order {
		if p, ok := f.pods[id]; ok {
			pods = append(pods, *p)
		}
	}
	mustEncode(w, map[string]any{"pods": pods})
}

func (f *fakeProvider) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID string `json:"templateId"`
		Name       string `json:"name"`
		GPUCount   int    `json:"gpuCount"`
	}
	mustDecode(r, &body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := &fakePod{
		ID:         fmt.Sprintf("pod-%d", f.nextID),
		Name:       body.Name,
		Status:     "creating",
		GPUType:    "RTX 4090",
		GPUCount:   body.GPUCount,
		TemplateID: body.TemplateID,
		CreatedAt:  "2025-01-01T00:00:00Z",
		Price:      0.5 * float64(body.GPUCount),
	}
	f.pods[p.ID] = p
	f.order = append(f.order, p.ID)
	w.WriteHeader(http.StatusCreated)
	mustEncode(w, p)
}

func (f *fakeProvider) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pods[r.PathValue("id")]
	if !ok {
		f.notFound(w)
		return
	}
	p.reads++
	switch p.Status {
	case "creating", "starting":
		if f.runAfter >= 0 && p.reads >= f.runAfter {
			p.Status = "running"
			p.SSHHost = "gpu1.voltagegpu.com"
			p.SSHPort = 22022
		}
	case "stopping":
		p.Status = "stopped"
		p.SSHHost = ""
		p.SSHPort = 0
	}
	mustEncode(w, p)
}

func (f *fakeProvider) action(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.pods[r.PathValue("id")]
		if !ok {
			f.notFound(w)
			return
		}
		p.Status = status
		p.reads = 0
		mustEncode(w, p)
	}
}

func (f *fakeProvider) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := f.pods[id]; !ok {
		f.notFound(w)
		return
	}
	delete(f.pods, id)
	w.WriteHeader(http.StatusNoContent)
}

// countingTransport records every round trip.
type countingTransport struct {
	mu    sync.Mutex
	calls int
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.next == nil {
		return http.DefaultTransport.RoundTrip(r)
	}
	return c.next.RoundTrip(r)
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
