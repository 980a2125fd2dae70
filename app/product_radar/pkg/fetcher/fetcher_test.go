package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(retries int) (*HTTPFetcher, *[]time.Duration) {
	f := NewHTTPFetcher(Options{MaxRetries: retries, RetryDelay: time.Second, UserAgent: "radar-test"})
	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "radar-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html><span id=productTitle>ok</span></html>"))
	}))
	defer srv.Close()

	f, slept := newTestFetcher(3)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body == "" || len(*slept) != 0 {
		t.Errorf("Fetch() body = %q, slept = %v", body, *slept)
	}
}

func TestHTTPFetcher_Fetch_RetriesWithLinearBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html>fine</html>"))
	}))
	defer srv.Close()

	f, slept := newTestFetcher(3)
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("slept = %v, want %v", *slept, want)
	}
}

func TestHTTPFetcher_Fetch_Blocked(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"503", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }},
		{"body", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("Your request was BLOCKED")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f, _ := newTestFetcher(3)
			_, err := f.Fetch(context.Background(), srv.URL)
			if !errors.Is(err, ErrBlocked) {
				t.Errorf("Fetch() error = %v, want ErrBlocked", err)
			}
		})
	}
}

func TestHTTPFetcher_Fetch_HTTPStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(3)
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrHTTPStatus) {
		t.Errorf("Fetch() error = %v, want ErrHTTPStatus", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
