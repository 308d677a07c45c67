package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestProjectIDFromLink(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://example.com/o/acme/project/PROJ-42/updates", "PROJ-42"},
		{"https://example.com/projects/PROJ-7", "PROJ-7"},
		{"https://example.com/o/acme/goals/G-1", ""},
		{"https://example.com/project/", ""},
		{"not a url at all \x7f://", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := projectIDFromLink(tt.link); got != tt.want {
			t.Errorf("projectIDFromLink(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}

func TestStaticSourceEmitsAndStops(t *testing.T) {
	src := NewStaticSource([]string{"P-1", "P-2"}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var bursts [][]string
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(ids []string) {
			mu.Lock()
			bursts = append(bursts, ids)
			mu.Unlock()
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(bursts)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected at least two bursts before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bursts[0]) != 2 || bursts[0][0] != "P-1" || bursts[0][1] != "P-2" {
		t.Errorf("unexpected first burst: %v", bursts[0])
	}
}

func TestFeedSourceExtractsProjectIDs(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Activity</title>
  <item><title>Update on Atlas rollout</title>
    <link>https://example.com/o/acme/project/PROJ-1/updates</link></item>
  <item><title>Another update</title>
    <link>https://example.com/o/acme/project/PROJ-2/updates</link></item>
  <item><title>Duplicate project</title>
    <link>https://example.com/o/acme/project/PROJ-1/updates</link></item>
  <item><title>Goal change, no project</title>
    <link>https://example.com/o/acme/goals/G-9</link></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss)
	}))
	defer server.Close()

	src := NewFeedSource(server.URL, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	src.poll(ctx, func(ids []string) { got = ids })

	want := []string{"PROJ-1", "PROJ-2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestFeedSourceSkipsFailedPoll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewFeedSource(server.URL, time.Minute)
	emitted := false
	src.poll(context.Background(), func(ids []string) { emitted = true })
	if emitted {
		t.Error("expected no emission on parse failure")
	}
}
