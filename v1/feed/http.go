// Package feed streams lock lifecycle events to HTTP observers over
// Server-Sent Events or WebSocket. The observed lock is named by the
// "lock" query parameter.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mirkobrombin/go-ownlock/v1/eventbus"
)

// Frame is the JSON payload sent for each lifecycle event.
type Frame struct {
	Lock  string        `json:"lock"`
	Event eventbus.Kind `json:"event"`
}

// subscribe attaches to both lifecycle topics of the named lock and
// merges them into a single Frame channel.
func subscribe(ctx context.Context, bus eventbus.Bus, name string) (chan Frame, error) {
	lockedCh, err := bus.Subscribe(ctx, eventbus.Topic(eventbus.KindLocked, name))
	if err != nil {
		return nil, err
	}
	unlockedCh, err := bus.Subscribe(ctx, eventbus.Topic(eventbus.KindUnlocked, name))
	if err != nil {
		_ = bus.Unsubscribe(context.Background(), eventbus.Topic(eventbus.KindLocked, name), lockedCh)
		return nil, err
	}
	out := make(chan Frame, 1)
	go func() {
		defer close(out)
		for {
			select {
			case _, ok := <-lockedCh:
				if !ok {
					return
				}
				select {
				case out <- Frame{Lock: name, Event: eventbus.KindLocked}:
				default:
				}
			case _, ok := <-unlockedCh:
				if !ok {
					return
				}
				select {
				case out <- Frame{Lock: name, Event: eventbus.KindUnlocked}:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SSEHandler streams lock events over Server-Sent Events.
func SSEHandler(bus eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("lock")
		if name == "" {
			http.Error(w, "missing lock", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		frames, err := subscribe(ctx, bus, name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", http.StatusInternalServerError)
			return
		}
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					return
				}
				data, err := json.Marshal(frame)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
					return
				}
				flusher.Flush()
			case <-ctx.Done():
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{}

// WebSocketHandler streams lock events over WebSocket.
func WebSocketHandler(bus eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("lock")
		if name == "" {
			http.Error(w, "missing lock", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		frames, err := subscribe(ctx, bus, name)
		if err != nil {
			return
		}
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
