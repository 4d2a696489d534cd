package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/speclink/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestPublishDiagnostics(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	_ = b.Publish("design/c.design.md", []models.Diagnostic{{
		Message:  "depends-on \"d.design\" creates a circular dependency",
		Severity: models.SeverityWarning,
		Code:     models.IssueCircularDependency,
	}})

	s := receive(t, ch)
	if !strings.HasPrefix(s, "id: 1\nevent: diagnostics.published\n") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"path":"design/c.design.md"`) || !strings.Contains(s, `"code":"circular-dependency"`) {
		t.Errorf("missing data in %q", s)
	}
}

func TestPublishEmptyAndRetract(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	_ = b.Publish("a.req.md", nil)
	if s := receive(t, ch); !strings.Contains(s, `"diagnostics":[]`) {
		t.Errorf("empty publish should carry an empty list: %q", s)
	}
	_ = b.Retract("a.req.md")
	if s := receive(t, ch); !strings.Contains(s, "event: diagnostics.retracted") {
		t.Errorf("missing retract event in %q", s)
	}
}

func TestDocumentChanged_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// First change triggers graph.updated, the second one is throttled.
	b.DocumentChanged(models.ChangeCreated, "a.req.md")
	b.DocumentChanged(models.ChangeModified, "b.req.md")

	time.Sleep(50 * time.Millisecond)
	graphCount := 0
	var docEvents []string
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "graph.updated") {
				graphCount++
			} else {
				docEvents = append(docEvents, strings.Split(s, "\n")[1])
			}
		default:
			break loop
		}
	}

	want := []string{"event: document.created", "event: document.modified"}
	if strings.Join(docEvents, ",") != strings.Join(want, ",") {
		t.Errorf("document events = %v, want %v", docEvents, want)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	_ = b.Retract("x.req.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.body(); !strings.Contains(body, "event: diagnostics.retracted") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestBroadcastDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64); one more must not block.
	for i := 0; i < 70; i++ {
		b.Broadcast(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	_ = b.Publish("x.req.md", nil)
	b.DocumentChanged(models.ChangeModified, "x.req.md")
}

func TestSubscribePathPrefix(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	design := b.Subscribe("design/")
	defer b.Unsubscribe(design)
	all := b.Subscribe("")
	defer b.Unsubscribe(all)

	_ = b.Publish("requirements/a.req.md", nil)
	_ = b.Publish("design/a.design.md", nil)
	b.DocumentChanged(models.ChangeDeleted, "requirements/a.req.md")

	if s := receive(t, design); !strings.Contains(s, `"path":"design/a.design.md"`) {
		t.Errorf("design subscriber got %q", s)
	}
	// graph.updated is unscoped and reaches every client.
	if s := receive(t, design); !strings.Contains(s, "event: graph.updated") {
		t.Errorf("design subscriber got %q", s)
	}
	select {
	case msg := <-design:
		t.Errorf("unexpected message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, strings.Split(receive(t, all), "\n")[1])
	}
	want := []string{
		"event: diagnostics.published",
		"event: diagnostics.published",
		"event: document.deleted",
		"event: graph.updated",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSSEHandler_KeepAliveAndFilter(t *testing.T) {
	b := NewBroker(time.Hour)
	b.KeepAlive = 20 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?path=design/", nil).WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	_ = b.Retract("requirements/a.req.md")
	_ = b.Retract("design/a.design.md")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, ": keepalive\n\n") {
		t.Errorf("no keepalive in %q", body)
	}
	if strings.Contains(body, "requirements/a.req.md") || !strings.Contains(body, "design/a.design.md") {
		t.Errorf("filter not applied: %q", body)
	}
}
