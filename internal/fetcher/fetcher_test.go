package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/kursy/internal/domain"
)

func TestFetchAllPartialFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`[{"table":"A","rates":[{"code":"EUR","mid":4.3}]}]`))
		case "/slow":
			time.Sleep(100 * time.Millisecond)
			w.Write([]byte(`{"bitcoin":{"pln":250000}}`))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/garbage":
			w.Write([]byte(`not json`))
		}
	}))
	defer server.Close()

	endpoints := map[string]string{
		"ok":      server.URL + "/ok",
		"slow":    server.URL + "/slow",
		"broken":  server.URL + "/broken",
		"garbage": server.URL + "/garbage",
	}

	f := New(NewClient(time.Second))
	results := f.FetchAll(context.Background(), endpoints)

	if len(results) != len(endpoints) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(endpoints))
	}
	if got := hits.Load(); got != 4 {
		t.Errorf("requests = %d, want exactly one per endpoint", got)
	}

	for _, id := range []string{"ok", "slow"} {
		r := results[id]
		if !r.OK() {
			t.Errorf("%s: expected payload, got error %v", id, r.Err)
		}
		if r.ProviderID != id {
			t.Errorf("%s: ProviderID = %q", id, r.ProviderID)
		}
	}

	if r := results["broken"]; r.Payload != nil || r.Kind() != domain.KindProtocol {
		t.Errorf("broken: payload=%s kind=%q, want absent/protocol", r.Payload, r.Kind())
	}
	if r := results["garbage"]; r.Payload != nil || r.Kind() != domain.KindPayload {
		t.Errorf("garbage: payload=%s kind=%q, want absent/payload", r.Payload, r.Kind())
	}
	if !AnyPayload(results) {
		t.Error("AnyPayload = false, want true")
	}
}

type stubGetter struct {
	calls atomic.Int32
	err   error
}

func (s *stubGetter) Get(_ context.Context, _ string) ([]byte, error) {
	s.calls.Add(1)
	return nil, s.err
}

func TestFetchAllAllFailed(t *testing.T) {
	stub := &stubGetter{err: domain.ErrTransport}
	f := New(stub)

	results := f.FetchAll(context.Background(), map[string]string{"a": "http://a", "b": "http://b"})
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if AnyPayload(results) {
		t.Error("AnyPayload = true, want false")
	}
	for id, r := range results {
		if r.Kind() != domain.KindTransport {
			t.Errorf("%s kind = %q, want transport", id, r.Kind())
		}
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2 (no retry)", got)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	results := New(&stubGetter{}).FetchAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}
