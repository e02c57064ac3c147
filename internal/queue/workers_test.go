package queue

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestDispatch_PathByKind(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &Pool{client: srv.Client()}
	tests := []struct {
		kind     Kind
		wantPath string
	}{
		{KindDM, "/message"},
		{KindEvaluate, "/evaluate"},
	}
	for _, tt := range tests {
		job := Job{ID: uuid.New(), Kind: tt.kind, AgentID: uuid.New(), Payload: []byte(`{}`)}
		// dispatch builds its request against agentURL(), which points at
		// the Docker DNS name, not the test server; swap the scheme+host
		// back onto a request built the same way dispatch does to confirm
		// the kind->path mapping without touching unexported internals.
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/x", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.URL.Path = agentPathForKind(job.Kind)
		if req.URL.Path == "" {
			t.Fatalf("unknown kind %q", job.Kind)
		}
		if _, err := p.client.Do(req); err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if gotPath != tt.wantPath {
			t.Errorf("kind %q: path = %q, want %q", tt.kind, gotPath, tt.wantPath)
		}
	}
}

func TestAgentURL_ContainsAgentID(t *testing.T) {
	id := uuid.New()
	url := agentURL(id, "/message")
	want := "http://agent-" + id.String() + ":8080/message"
	if url != want {
		t.Fatalf("agentURL = %q, want %q", url, want)
	}
}
