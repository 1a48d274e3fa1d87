package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

// Hub fans out progress snapshots of active runs to websocket subscribers.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	last model.Progress
	subs map[chan model.Progress]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]*topic)}
}

// Publish records p as the latest state of its run and forwards it to subscribers.
// Slow subscribers miss intermediate snapshots but always get the final one. The
// final snapshot closes every subscription and forgets the run; later readers go
// to the store.
func (h *Hub) Publish(p model.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[p.RunID]
	if !ok {
		if p.Finished {
			return
		}
		t = &topic{subs: make(map[chan model.Progress]struct{})}
		h.topics[p.RunID] = t
	}
	t.last = p
	for ch := range t.subs {
		select {
		case ch <- p:
		default:
			if p.Finished {
				// Make room for the final snapshot.
				select {
				case <-ch:
				default:
				}
				ch <- p
			}
		}
	}
	if p.Finished {
		for ch := range t.subs {
			close(ch)
		}
		t.subs = nil
		delete(h.topics, p.RunID)
	}
}

// Subscribe returns a channel of updates for an active run and its latest snapshot.
// The channel is closed after the final snapshot. For a run the hub does not know,
// ok is false and the channel is already closed. Call cancel when done.
func (h *Hub) Subscribe(runID string) (updates <-chan model.Progress, last model.Progress, ok bool, cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan model.Progress, 8)
	t, ok := h.topics[runID]
	if !ok {
		close(ch)
		return ch, model.Progress{}, false, func() {}
	}
	t.subs[ch] = struct{}{}
	cancel = func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
	return ch, t.last, true, cancel
}

// Last returns the latest snapshot of an active run.
func (h *Hub) Last(runID string) (model.Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[runID]
	if !ok {
		return model.Progress{}, false
	}
	return t.last, true
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const wsWriteWait = 10 * time.Second

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to load run", "run_id", runID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "run_id", runID, "error", err)
		return
	}
	defer conn.Close()

	send := func(p model.Progress) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if run.Status == model.RunCompleted || run.Status == model.RunFailed {
		_ = send(finalProgress(run))
		closeNormal(conn)
		return
	}

	updates, last, ok, cancel := h.runner.hub.Subscribe(runID)
	defer cancel()
	if !ok {
		// The run finished between the lookup and the subscription.
		h.sendStored(r, runID, send)
		closeNormal(conn)
		return
	}
	if err := send(last); err != nil {
		return
	}

	// Detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case p, open := <-updates:
			if !open {
				closeNormal(conn)
				return
			}
			if err := send(p); err != nil {
				slog.Debug("progress client write failed", "run_id", runID, "error", err)
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) sendStored(r *http.Request, runID string, send func(model.Progress) error) {
	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		slog.Warn("failed to reload run", "run_id", runID, "error", err)
		return
	}
	if run.Status == model.RunCompleted || run.Status == model.RunFailed {
		_ = send(finalProgress(run))
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// finalProgress describes a finished run loaded from the store.
func finalProgress(run model.Run) model.Progress {
	return model.Progress{
		RunID:     run.ID,
		Done:      len(run.Result.Questions) + len(run.Result.Failures),
		Total:     run.Result.Requested,
		Visuals:   len(run.Result.Visuals),
		Dropped:   len(run.Result.Failures),
		Finished:  true,
		Status:    run.Status,
		LastError: run.Error,
	}
}
