package attachments

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/attachsync/internal/common"
)

// Snapshot is one emission of a watch stream: the full current id list of
// the watched query, or the error that prevented reading it.
type Snapshot struct {
	IDs []string
	Err error
}

// changeHub fans committed-write signals out to watch subscriptions.
type changeHub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func newChangeHub() *changeHub {
	return &changeHub{subs: make(map[int]chan struct{})}
}

func (h *changeHub) subscribe() (int, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan struct{}, 1)
	h.subs[id] = ch
	return id, ch
}

func (h *changeHub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// publish never blocks: a subscriber with a pending signal already knows it
// has to re-read.
func (h *changeHub) publish() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *changeHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// watch runs query once immediately and again after every change signal,
// until ctx is done. The returned channel holds at most the latest snapshot;
// stale unread snapshots are replaced.
func (r *SQLiteRepository) watch(ctx context.Context, query func(ctx context.Context) ([]string, error)) <-chan Snapshot {
	out := make(chan Snapshot, 1)

	if r.hub == nil {
		out <- Snapshot{Err: common.ErrNestedTransaction}
		close(out)
		return out
	}

	id, changed := r.hub.subscribe()

	emit := func() bool {
		ids, err := query(ctx)
		if ctx.Err() != nil {
			return false
		}
		select {
		case <-out:
		default:
		}
		out <- Snapshot{IDs: ids, Err: err}
		return true
	}

	go func() {
		defer close(out)
		defer r.hub.unsubscribe(id)

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}
