package netstatus

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestProbe_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := New(Config{ProbeURL: srv.URL, Logger: quiet()})
	m.Set(false)
	if err := m.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() = %v, want nil", err)
	}
	if !m.Online() {
		t.Error("Online() = false after successful probe")
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := New(Config{ProbeURL: url, Timeout: 200 * time.Millisecond, Logger: quiet()})
	err := m.Probe(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Probe() = %v, want ErrUnreachable", err)
	}
	if m.Online() {
		t.Error("Online() = true after failed probe")
	}
}

func TestProbe_NoURLFollowsSignal(t *testing.T) {
	m := New(Config{Logger: quiet()})
	if err := m.Probe(context.Background()); err != nil {
		t.Errorf("Probe() online = %v", err)
	}
	m.Set(false)
	if err := m.Probe(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Errorf("Probe() offline = %v, want ErrUnreachable", err)
	}
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	m := New(Config{Logger: quiet()})
	ch, cancel := m.Subscribe()
	defer cancel()

	m.Set(true) // no change, no notification
	m.Set(false)
	m.Set(true)

	select {
	case v := <-ch:
		if !v {
			t.Errorf("latest transition = %v, want true", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}
