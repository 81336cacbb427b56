package pdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePDB = `HEADER    HYDROLASE
ATOM      1  CA  ALA A   1      11.104   6.134  -6.504  1.00  0.00           C
END
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download/1HVR.pdb":
			_, _ = w.Write([]byte(samplePDB))
		case "/download/9ZZZ.pdb":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPDB(t *testing.T) {
	srv := newTestServer(t)
	client := NewHTTPClient(srv.URL, 5*time.Second)

	content, err := client.FetchPDB(context.Background(), "1hvr")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "ATOM") {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFetchPDB_NotFound(t *testing.T) {
	srv := newTestServer(t)
	client := NewHTTPClient(srv.URL, 5*time.Second)

	_, err := client.FetchPDB(context.Background(), "9ZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchPDB_InvalidID(t *testing.T) {
	client := NewHTTPClient("http://localhost:0", time.Second)

	for _, id := range []string{"", "ABC", "12345", "1HV!", "XHVR"} {
		if _, err := client.FetchPDB(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("id %q: expected ErrInvalidID, got %v", id, err)
		}
	}
}

func TestFetchPDB_ServerError(t *testing.T) {
	srv := newTestServer(t)
	client := NewHTTPClient(srv.URL, 5*time.Second)

	_, err := client.FetchPDB(context.Background(), "2ERR")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestFetchPDB_ConnectionRefused(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", time.Second)

	_, err := client.FetchPDB(context.Background(), "1HVR")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}
