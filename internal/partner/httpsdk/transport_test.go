package httpsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTransport_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	tr := newTransport(time.Second, 1024)
	defer tr.close()

	resp, err := tr.do(context.Background(), http.MethodPost, srv.URL, []byte(`{}`), http.Header{"X-Test": []string{"yes"}}, time.Second)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"id":"1"}` {
		t.Errorf("Unexpected body %q", resp.Body)
	}
	if resp.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("Expected content type header, got %q", resp.Headers.Get("Content-Type"))
	}
}

func TestTransport_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	tr := newTransport(time.Second, 16)
	defer tr.close()

	_, err := tr.do(context.Background(), http.MethodGet, srv.URL, nil, nil, time.Second)
	if !errors.Is(err, errResponseTooLarge) {
		t.Errorf("Expected errResponseTooLarge, got %v", err)
	}
}

func TestTransport_CancelledDuringBodyRead(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":`))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := newTransport(5*time.Second, 1024)
	defer tr.close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := tr.do(ctx, http.MethodGet, srv.URL, nil, nil, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
