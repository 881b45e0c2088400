package core

import (
	"sync"

	"loantender/core/types"
)

const eventBacklogSize = 256

// eventFeed fans committed events out to websocket and test subscribers. A
// bounded backlog lets late subscribers catch up on recent history; slow
// subscribers drop events rather than stall the node.
type eventFeed struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan *types.Event
	backlog []*types.Event
	maxSize int
}

func newEventFeed(backlogSize int) *eventFeed {
	if backlogSize <= 0 {
		backlogSize = eventBacklogSize
	}
	return &eventFeed{
		subs:    make(map[uint64]chan *types.Event),
		maxSize: backlogSize,
	}
}

func (f *eventFeed) publish(evt *types.Event) {
	if evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backlog = append(f.backlog, evt.Clone())
	if len(f.backlog) > f.maxSize {
		f.backlog = f.backlog[len(f.backlog)-f.maxSize:]
	}
	for _, ch := range f.subs {
		select {
		case ch <- evt.Clone():
		default:
		}
	}
}

func (f *eventFeed) subscribe(buffer int) (<-chan *types.Event, func(), []*types.Event) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan *types.Event, buffer)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	backlog := make([]*types.Event, len(f.backlog))
	for i, evt := range f.backlog {
		backlog[i] = evt.Clone()
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if existing, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(existing)
		}
		f.mu.Unlock()
	}
	return ch, cancel, backlog
}
