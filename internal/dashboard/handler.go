package dashboard

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mschirtzinger/tally/internal/sync"
)

// StatusFunc reports the current sync status.
type StatusFunc func(ctx context.Context) sync.Status

// Handler turns sync events into dashboard messages. It implements
// sync.EventSink.
type Handler struct {
	server *Server
	status StatusFunc
	logger *log.Logger
}

var _ sync.EventSink = (*Handler)(nil)

// NewHandler creates a handler broadcasting through server. status may be
// nil, in which case no status snapshots are sent.
func NewHandler(server *Server, status StatusFunc, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	h := &Handler{server: server, status: status, logger: logger}
	if status != nil && server.snapshot == nil {
		server.snapshot = h.Snapshot
	}
	return h
}

// Publish broadcasts e. Events that change the queue or connectivity are
// followed by a status snapshot.
func (h *Handler) Publish(e sync.Event) {
	msg, err := NewMessage(MessageTypeEvent, e)
	if err != nil {
		h.logger.Printf("Failed to format event: %v", err)
		return
	}
	if !e.Time.IsZero() {
		msg.Timestamp = e.Time
	}
	h.server.Broadcast(msg)

	switch e.Type {
	case sync.EventQueued, sync.EventFlushed, sync.EventSynced, sync.EventOnline, sync.EventOffline:
		h.broadcastStatus()
	}
}

// Snapshot builds a status message. It is also the server's welcome message.
func (h *Handler) Snapshot(ctx context.Context) (Message, error) {
	if h.status == nil {
		return NewMessage(MessageTypeStatus, sync.Status{})
	}
	return NewMessage(MessageTypeStatus, h.status(ctx))
}

// broadcastStatus runs off the publisher's goroutine; the status call may
// probe the network.
func (h *Handler) broadcastStatus() {
	if h.status == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg, err := h.Snapshot(ctx)
		if err != nil {
			h.logger.Printf("Failed to build status: %v", err)
			return
		}
		h.server.Broadcast(msg)
	}()
}
