// Package sse streams diagnostics and document changes to browsers and editors
// over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/speclink/internal/diagnostics"
	"github.com/starford/speclink/internal/models"
)

// Event types written to the stream.
const (
	EventDiagnosticsPublished = "diagnostics.published"
	EventDiagnosticsRetracted = "diagnostics.retracted"
	EventGraphUpdated         = "graph.updated"
)

// DefaultKeepAlive is the interval of comment frames that keep idle streams open
// through proxies.
const DefaultKeepAlive = 25 * time.Second

var _ diagnostics.Sink = (*Broker)(nil)

// Event represents an SSE event to broadcast. Path scopes the event to one
// document; events without a path reach every client.
type Event struct {
	Type string `json:"type"`
	Path string `json:"-"`
	Data any    `json:"data"`
}

// DiagnosticsPayload is the data of the diagnostics events.
type DiagnosticsPayload struct {
	Path        string              `json:"path"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

type subscription struct {
	ch     chan []byte
	prefix string
}

// message is one entry of the ordered publish queue: an event, or a document
// change that expands into a document event and a throttled graph event.
type message struct {
	event  Event
	change *models.ChangeEvent
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the mutable state (clients, the event
// sequence and the graph throttle timestamp). Public methods talk to it over
// channels.
type Broker struct {
	graphMin time.Duration

	// KeepAlive is the comment frame interval used by ServeHTTP.
	KeepAlive time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan message
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		KeepAlive:     DefaultKeepAlive,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan message, 512),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		seq       uint64
		lastGraph time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, prefix := range clients {
			if event.Path != "" && !strings.HasPrefix(event.Path, prefix) {
				continue
			}
			select {
			case ch <- frame:
			default:
				// Slow client; drop rather than stall every other stream.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.prefix

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case msg := <-b.publishCh:
			if msg.change == nil {
				broadcast(msg.event)
				continue
			}
			ch := msg.change
			broadcast(Event{Type: "document." + string(ch.Kind), Path: ch.Path, Data: map[string]string{"path": ch.Path}})

			now := time.Now()
			if now.Sub(lastGraph) >= b.graphMin {
				lastGraph = now
				broadcast(Event{Type: EventGraphUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives document events for paths starting
// with prefix (all documents when empty) and every unscoped event.
func (b *Broker) Subscribe(prefix string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, prefix: prefix}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Broadcast sends an event to the matching clients.
func (b *Broker) Broadcast(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- message{event: event}:
	case <-b.stopped:
	}
}

// Publish implements diagnostics.Sink.
func (b *Broker) Publish(path string, diags []models.Diagnostic) error {
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	b.Broadcast(Event{Type: EventDiagnosticsPublished, Path: path, Data: DiagnosticsPayload{Path: path, Diagnostics: diags}})
	return nil
}

// Retract implements diagnostics.Sink.
func (b *Broker) Retract(path string) error {
	b.Broadcast(Event{Type: EventDiagnosticsRetracted, Path: path, Data: DiagnosticsPayload{Path: path, Diagnostics: []models.Diagnostic{}}})
	return nil
}

// DocumentChanged publishes a document.<kind> event and a throttled graph.updated.
func (b *Broker) DocumentChanged(kind models.ChangeKind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- message{change: &models.ChangeEvent{Kind: kind, Path: path}}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// "path" query parameter limits document events to that path prefix.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("path"))
	defer b.Unsubscribe(ch)

	keepAlive := b.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
