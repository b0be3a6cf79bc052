// Package sse implements a Server-Sent Events broker that fans session state
// changes out to the pages watching them.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types sent to pages.
const (
	EventState         = "session.state"
	EventAssetsChanged = "assets.changed"
)

// Event represents an SSE event to deliver.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscription struct {
	topic string
	ch    chan []byte
}

type publishReq struct {
	topic string // empty means every subscriber
	event Event
}

// Broker manages SSE client connections grouped by topic (a session id).
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + asset throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	assetsMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan publishReq
	assetsCh      chan map[string]string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new broker. assetsThrottle is the minimum interval between
// two assets.changed broadcasts.
func NewBroker(assetsThrottle time.Duration) *Broker {
	if assetsThrottle <= 0 {
		assetsThrottle = 2 * time.Second
	}

	b := &Broker{
		assetsMin:     assetsThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan publishReq, 256),
		assetsCh:      make(chan map[string]string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), true
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var lastAssets time.Time

	deliver := func(topic string, event Event) {
		raw, ok := encode(event)
		if !ok {
			return
		}
		for ch, t := range clients {
			if topic != "" && t != topic {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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
			clients[sub.ch] = sub.topic

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case req := <-b.publishCh:
			deliver(req.topic, req.event)

		case data := <-b.assetsCh:
			now := time.Now()
			if now.Sub(lastAssets) >= b.assetsMin {
				lastAssets = now
				deliver("", Event{Type: EventAssetsChanged, Data: data})
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

// Subscribe adds a client for topic and returns its channel.
func (b *Broker) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{topic: topic, ch: ch}:
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

// Publish sends an event to the clients subscribed to topic.
func (b *Broker) Publish(topic string, event Event) {
	b.send(publishReq{topic: topic, event: event})
}

func (b *Broker) send(req publishReq) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- req:
	case <-b.stopped:
	}
}

// PublishAssetsChanged broadcasts a throttled assets.changed event.
func (b *Broker) PublishAssetsChanged(kind, name string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.assetsCh <- map[string]string{"kind": kind, "name": name}:
	case <-b.stopped:
	}
}

// ServeTopic streams the events of topic until the client disconnects. The
// initial events are written first, after the client is subscribed, so a page
// sees the current state even when nothing changes.
func (b *Broker) ServeTopic(w http.ResponseWriter, r *http.Request, topic string, initial ...Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := b.Subscribe(topic)
	defer b.Unsubscribe(ch)

	for _, event := range initial {
		if raw, ok := encode(event); ok {
			_, _ = w.Write(raw)
		}
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
