package session

import "sync"

// StateCell is the single-writer holder of the published [State].
//
// Publish replaces the value and notifies subscribers while holding the cell
// lock, so subscribers observe publications in total order. A subscriber that
// falls behind only ever sees the latest value.
type StateCell struct {
	mu      sync.Mutex
	state   State
	nextID  uint64
	subs    map[uint64]chan State
	version uint64
}

// NewStateCell returns a cell holding the unauthenticated state.
func NewStateCell() *StateCell {
	return &StateCell{
		state: Unauthenticated(),
		subs:  make(map[uint64]chan State),
	}
}

// Load returns the current state.
func (c *StateCell) Load() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Publish replaces the current state with next and returns the stored value.
func (c *StateCell) Publish(next State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	next.Version = c.version
	c.state = next

	for _, ch := range c.subs {
		deliverLatest(ch, next)
	}
	return next
}

// Update applies fn to the current state and publishes the result. It is used
// for transitions that keep most of the previous value, such as toggling Loading.
func (c *StateCell) Update(fn func(State) State) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := fn(c.state)
	c.version++
	next.Version = c.version
	c.state = next

	for _, ch := range c.subs {
		deliverLatest(ch, next)
	}
	return next
}

// Subscribe registers a subscriber. The returned channel immediately carries
// the current state. The cancel func unregisters and closes the channel.
func (c *StateCell) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan State, 1)
	ch <- c.state
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (c *StateCell) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func deliverLatest(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	// drop the stale value the subscriber has not read yet
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
