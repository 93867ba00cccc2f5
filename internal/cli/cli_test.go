package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	volt "github.com/voltagegpu/volt-go"
)

// fakeAPI serves a fixed pod list and records mutating calls.
type fakeAPI struct {
	mu    sync.Mutex
	pods  []map[string]any
	calls []string

	// unlisted pods are only reachable by id.
	unlisted map[string]map[string]any
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{pods: []map[string]any{
		{"id": "pod-1", "name": "train", "status": "running", "gpuType": "RTX 4090", "gpuCount": 1, "sshHost": "gpu1.example.com", "sshPort": 22022},
		{"id": "pod-2", "name": "eval", "status": "running", "gpuCount": 1, "sshHost": "gpu2.example.com", "sshPort": 22},
		{"id": "pod-3", "name": "old", "status": "stopped", "gpuCount": 1},
	}, unlisted: map[string]map[string]any{
		"pod-77": {"id": "pod-77", "name": "archived", "status": "stopped", "gpuCount": 1},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /volt/pods", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"pods": f.pods})
	})
	mux.HandleFunc("GET /volt/pods/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		for _, p := range f.pods {
			if p["id"] == id {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		if p, ok := f.unlisted[id]; ok {
			writeJSON(w, http.StatusOK, p)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "pod not found"})
	})
	mux.HandleFunc("POST /volt/pods/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "status": "stopping"})
	})
	mux.HandleFunc("DELETE /volt/pods/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /volt/pods", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusCreated, map[string]any{"id": "pod-9", "name": "new", "status": "creating"})
	})
	mux.HandleFunc("GET /user/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid API key"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"balance": 12.34, "currency": "USD"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type result struct {
	code   int
	stdout string
	stderr string
}

// run executes the CLI with a clean environment and a temporary config
// file.
func run(t *testing.T, stdin string, env map[string]string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &App{
		In:     strings.NewReader(stdin),
		Out:    &out,
		Err:    &errOut,
		Getenv: func(k string) string { return env[k] },
	}
	code := Execute(context.Background(), app, args)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func apiArgs(srv *httptest.Server, cfg string, args ...string) []string {
	return append([]string{"--api-key", "test-key", "--base-url", srv.URL, "--config", cfg}, args...)
}

// TestPodsList_JSON verifies list output in JSON mode.
func TestPodsList_JSON(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "--json", "pods", "list")...)
	require.Equal(t, 0, res.code, res.stderr)

	var pods []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &pods))
	require.Len(t, pods, 3)
	assert.Equal(t, "pod-1", pods[0]["id"])
	assert.Equal(t, "stopped", pods[2]["status"])
}

// TestPodsGet_ByNameAndHUID verifies pod references resolve by name and by
// human-readable id.
func TestPodsGet_ByNameAndHUID(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "pods", "get", "train")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "pod-1")
	assert.Contains(t, res.stdout, "ssh -p 22022 root@gpu1.example.com")

	res = run(t, "", nil, apiArgs(srv, cfg, "pods", "get", volt.HUID("pod-2"))...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "eval")

	res = run(t, "", nil, apiArgs(srv, cfg, "--json", "pods", "get", "missing")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `"code": "NOT_FOUND"`)
}

// TestPodsGet_ByID verifies an id is fetched directly, so pods missing from
// the list still resolve.
func TestPodsGet_ByID(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "pods", "get", "pod-77")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "archived")

	res = run(t, "", nil, apiArgs(srv, cfg, "pods", "get", "pod-1")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "train")
}

// TestMissingAPIKey verifies a missing key is reported as a configuration
// error on stderr.
func TestMissingAPIKey(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, "--config", cfg, "--json", "account", "balance")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout)

	var doc struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stderr), &doc), res.stderr)
	assert.Equal(t, volt.CodeConfiguration, doc.Error.Code)
}

// TestAPIKeyFromEnvironment verifies the CLI reads VOLT_API_KEY.
func TestAPIKeyFromEnvironment(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	env := map[string]string{"VOLT_API_KEY": "test-key", "VOLT_BASE_URL": srv.URL}

	res := run(t, "", env, "--config", cfg, "account", "balance")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "12.34 USD")
}

// TestConfig_SetGet verifies config round-trips and masks the key.
func TestConfig_SetGet(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "volt", "config.yaml")

	res := run(t, "", nil, "--config", cfg, "config", "set", "api_key", "vk_live_1234567890")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "api_key updated")

	info, err := os.Stat(cfg)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	res = run(t, "", nil, "--config", cfg, "config", "get", "api_key")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "vk_l**********7890\n", res.stdout)

	res = run(t, "", nil, "--config", cfg, "config", "get", "api_key", "--reveal")
	assert.Equal(t, "vk_live_1234567890\n", res.stdout)

	res = run(t, "", nil, "--config", cfg, "config", "unset", "api_key")
	require.Equal(t, 0, res.code, res.stderr)
	res = run(t, "", nil, "--config", cfg, "config", "get", "api_key", "--reveal")
	assert.Equal(t, "\n", res.stdout)

	res = run(t, "", nil, "--config", cfg, "config", "set", "region", "eu")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown config key")
}

// TestConfig_UsedForCredentials verifies the config file feeds the client.
func TestConfig_UsedForCredentials(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	require.Equal(t, 0, run(t, "", nil, "--config", cfg, "config", "set", "api_key", "test-key").code)
	require.Equal(t, 0, run(t, "", nil, "--config", cfg, "config", "set", "base_url", srv.URL).code)

	res := run(t, "", nil, "--config", cfg, "--json", "account", "balance")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"balance": 12.34`)
}

// TestPodsCreate_InvalidFlags verifies local validation runs before any
// request.
func TestPodsCreate_InvalidFlags(t *testing.T) {
	f, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "--json", "pods", "create", "-t", "pytorch-cuda12", "-n", "x", "--gpus", "0")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `"field": "gpuCount"`)

	res = run(t, "", nil, apiArgs(srv, cfg, "pods", "create", "-t", "pytorch-cuda12", "-n", "x", "-e", "NOEQUALS")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "KEY=VALUE")

	assert.Empty(t, f.recorded())
}

// TestPodsCreate verifies a create without waiting prints the new pod.
func TestPodsCreate(t *testing.T) {
	f, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "--json", "pods", "create", "-t", "pytorch-cuda12", "-n", "new", "-e", "A=1")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"id": "pod-9"`)
	assert.Equal(t, []string{"POST /volt/pods"}, f.recorded())
}

// TestPodsStop_All stops every running pod and nothing else.
func TestPodsStop_All(t *testing.T) {
	f, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "--json", "pods", "stop", "--all")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.ElementsMatch(t, []string{"POST /volt/pods/pod-1/stop", "POST /volt/pods/pod-2/stop"}, f.recorded())

	res = run(t, "", nil, apiArgs(srv, cfg, "pods", "stop", "train", "--all")...)
	assert.Equal(t, 1, res.code)
}

// TestPodsDelete_Confirm verifies the prompt and --yes.
func TestPodsDelete_Confirm(t *testing.T) {
	f, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "n\n", nil, apiArgs(srv, cfg, "pods", "delete", "train")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Aborted.")
	assert.Contains(t, res.stderr, "Delete pod train (pod-1)?")
	assert.Empty(t, f.recorded())

	res = run(t, "", nil, apiArgs(srv, cfg, "--json", "pods", "rm", "pod-1", "--yes")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.JSONEq(t, `{"ok":true,"message":"pod deleted","id":"pod-1"}`, res.stdout)
	assert.Equal(t, []string{"DELETE /volt/pods/pod-1"}, f.recorded())
}

// TestPodsSSH_Print verifies the ssh command is printed, and refused for
// pods that are not running.
func TestPodsSSH_Print(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	res := run(t, "", nil, apiArgs(srv, cfg, "pods", "ssh", "eval", "--print")...)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "ssh -p 22 root@gpu2.example.com\n", res.stdout)

	res = run(t, "", nil, apiArgs(srv, cfg, "pods", "ssh", "old", "--print")...)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "only available while running")
}

// TestVersion_JSON verifies version output and the compatibility check.
func TestVersion_JSON(t *testing.T) {
	res := run(t, "", nil, "--json", "version", "--check", "2.0.0")
	require.Equal(t, 0, res.code, res.stderr)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, volt.Version, info.Version)
	assert.Equal(t, "2.0.0", info.ServerVersion)
	require.NotNil(t, info.ServerSupported)
	assert.False(t, *info.ServerSupported)
}

// TestUnknownCommand verifies cobra errors go through the error printer.
func TestUnknownCommand(t *testing.T) {
	res := run(t, "", nil, "explode")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unknown command "explode"`)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "****", maskKey("abcd"))
	assert.Equal(t, "abcd****wxyz", maskKey("abcd1234wxyz"))
}
