package engine

import (
	"sync"

	"github.com/airchains-network/devchain/types"
)

const subscriberBuffer = 64

// feed fans mined blocks out to subscribers. A subscriber that falls
// behind by a full buffer misses blocks rather than stalling mining.
type feed struct {
	mutex sync.Mutex
	next  int
	subs  map[int]chan *types.Block
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan *types.Block)}
}

func (f *feed) subscribe() (<-chan *types.Block, func()) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	id := f.next
	f.next++
	ch := make(chan *types.Block, subscriberBuffer)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mutex.Lock()
			defer f.mutex.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

func (f *feed) send(block *types.Block) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- block:
		default:
		}
	}
}

// SubscribeBlocks delivers every newly mined block until the returned
// cancel function is called
func (e *Engine) SubscribeBlocks() (<-chan *types.Block, func()) {
	return e.events.subscribe()
}
