package volt_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	volt "github.com/voltagegpu/volt-go"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []volt.PodEvent
	err    error
}

func (p *recordingPublisher) PublishPodEvent(_ context.Context, ev volt.PodEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) transitions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, string(ev.From)+"->"+string(ev.To))
	}
	return out
}

// TestCreatePodAndWait_BecomesRunning verifies that the tracker returns the
// running pod once the backend transitions.
func TestCreatePodAndWait_BecomesRunning(t *testing.T) {
	f, srv := newFakeProvider(t, 2)
	pub := &recordingPublisher{}
	client := newTestClient(t, srv.URL, volt.WithEventPublisher(pub))

	pod, err := client.CreatePodAndWait(context.Background(), &volt.CreatePodRequest{
		TemplateID: "pytorch-cuda12",
		Name:       "t1",
	}, fastWait(5*time.Second))

	require.NoError(t, err)
	assert.Equal(t, volt.PodRunning, pod.Status)
	assert.Equal(t, 2, f.count(http.MethodGet, "/volt/pods/"+pod.ID))

	cmd, ok := pod.SSHCommand()
	require.True(t, ok)
	assert.Equal(t, "ssh -p 22022 root@gpu1.voltagegpu.com", cmd)

	assert.Equal(t, []string{"->creating", "creating->running"}, pub.transitions())
}

// TestCreatePodAndWait_Timeout verifies that a pod stuck in creating yields
// PROVISIONING_TIMEOUT and is left alone.
func TestCreatePodAndWait_Timeout(t *testing.T) {
	f, srv := newFakeProvider(t, -1)
	client := newTestClient(t, srv.URL)

	start := time.Now()
	pod, err := client.CreatePodAndWait(context.Background(), &volt.CreatePodRequest{
		TemplateID: "pytorch-cuda12",
		Name:       "stuck",
	}, fastWait(100*time.Millisecond))

	require.Error(t, err)
	assert.True(t, errors.Is(err, volt.ErrProvisioningTimeout), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	require.NotNil(t, pod, "the last observed pod is returned")
	assert.Equal(t, volt.PodCreating, pod.Status)
	assert.Zero(t, f.countMethod(http.MethodDelete), "the tracker never deletes")

	// The pod still exists and can be queried.
	still, err := client.GetPod(context.Background(), pod.ID)
	require.NoError(t, err)
	assert.Equal(t, volt.PodCreating, still.Status)
}

// TestWaitForPod_Cancel verifies that cancelling the caller context stops
// polling promptly with a CANCELED error.
func TestWaitForPod_Cancel(t *testing.T) {
	f, srv := newFakeProvider(t, -1)
	f.seed(fakePod{ID: "pod-1", Status: "creating"})
	client := newTestClient(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.WaitForPod(ctx, "pod-1", volt.PodRunning, volt.WaitOptions{
		PollInterval: 10 * time.Millisecond,
		Timeout:      time.Minute,
		Jitter:       -1,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, volt.ErrCanceled), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, f.countMethod(http.MethodDelete))
	assert.Zero(t, f.countMethod(http.MethodPost))
}

// TestCreatePodAndWait_Failed verifies that the error state ends the wait.
func TestCreatePodAndWait_Failed(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			mustEncode(w, map[string]any{"id": "pod-9", "name": "bad", "status": "provisioning"})
		case http.MethodGet:
			polls.Add(1)
			mustEncode(w, map[string]any{"id": "pod-9", "name": "bad", "status": "failed"})
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	pod, err := client.CreatePodAndWait(context.Background(), &volt.CreatePodRequest{
		TemplateID: "pytorch-cuda12",
		Name:       "bad",
	}, fastWait(time.Second))

	require.Error(t, err)
	assert.True(t, errors.Is(err, volt.ErrPodFailed))
	require.NotNil(t, pod)
	assert.Equal(t, volt.PodError, pod.Status)
	assert.EqualValues(t, 1, polls.Load())
}

// TestStopPodAndWait waits for a pod to stop.
func TestStopPodAndWait(t *testing.T) {
	f, srv := newFakeProvider(t, 0)
	f.seed(fakePod{ID: "pod-1", Name: "p", Status: "running", SSHHost: "h", SSHPort: 22})
	client := newTestClient(t, srv.URL)

	pod, err := client.StopPodAndWait(context.Background(), "pod-1", fastWait(time.Second))
	require.NoError(t, err)
	assert.Equal(t, volt.PodStopped, pod.Status)
	assert.Empty(t, pod.SSHHost)
}

// TestStartPodAndWait waits for a stopped pod to run again.
func TestStartPodAndWait(t *testing.T) {
	f, srv := newFakeProvider(t, 1)
	f.seed(fakePod{ID: "pod-1", Name: "p", Status: "stopped"})
	client := newTestClient(t, srv.URL)

	pod, err := client.StartPodAndWait(context.Background(), "pod-1", fastWait(time.Second))
	require.NoError(t, err)
	assert.Equal(t, volt.PodRunning, pod.Status)
}

// TestDeletePodAndWait treats NOT_FOUND as deleted.
func TestDeletePodAndWait(t *testing.T) {
	f, srv := newFakeProvider(t, 0)
	f.seed(fakePod{ID: "pod-1", Name: "p", Status: "running"})
	pub := &recordingPublisher{}
	client := newTestClient(t, srv.URL, volt.WithEventPublisher(pub))

	err := client.DeletePodAndWait(context.Background(), "pod-1", fastWait(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(http.MethodDelete, "/volt/pods/pod-1"))
	assert.Equal(t, []string{"deleting->deleted"}, pub.transitions())
}

// TestWaitForPod_UnexpectedTransition logs a warning for transitions the
// state machine does not allow, and keeps publishing when the publisher
// fails.
func TestWaitForPod_UnexpectedTransition(t *testing.T) {
	var reads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "stopped"
		if reads.Add(1) > 1 {
			status = "error"
		}
		mustEncode(w, map[string]any{"id": "pod-1", "status": status})
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	pub := &recordingPublisher{err: errors.New("broker down")}
	client := newTestClient(t, server.URL,
		volt.WithLogger(zap.New(core)),
		volt.WithEventPublisher(pub))

	_, err := client.WaitForPod(context.Background(), "pod-1", volt.PodRunning, fastWait(time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, volt.ErrPodFailed))

	assert.Equal(t, 1, logs.FilterMessage("unexpected pod transition").Len())
	assert.Equal(t, 2, logs.FilterMessage("failed to publish pod event").Len())
	assert.Equal(t, []string{"->stopped", "stopped->error"}, pub.transitions())
}

// TestWaitForPod_AlreadyThere returns after a single read when the pod is
// already in the target state, even with zero options.
func TestWaitForPod_AlreadyThere(t *testing.T) {
	f, srv := newFakeProvider(t, 0)
	f.seed(fakePod{ID: "pod-1", Status: "running"})
	client := newTestClient(t, srv.URL)

	pod, err := client.WaitForPod(context.Background(), "pod-1", volt.PodRunning, volt.WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, volt.PodRunning, pod.Status)
	assert.Equal(t, 1, f.count(http.MethodGet, "/volt/pods/pod-1"))
}
