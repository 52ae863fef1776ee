// Package eventbus broadcasts events to subscribers grouped by topic
package eventbus

import (
	"context"
	"sync"
)

// Topic creates a group of subscribers that only receive events published to that topic
type Topic string

const defaultTopic Topic = "__default__"

// ShutdownFunc is called by a subscriber once it has finished processing after its event channel
// is closed
type ShutdownFunc func()

type subscriber struct {
	ch   chan Event
	quit chan struct{}
	done chan struct{}
	once sync.Once
	stop sync.Once

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
}

func newSubscriber() *subscriber {
	s := &subscriber{
		ch:   make(chan Event, 16),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
	go s.run()
	return s
}

func (s *subscriber) finish() {
	s.once.Do(func() { close(s.done) })
}

// push queues the event without blocking the dispatcher
func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// close stops accepting events.  The event channel is closed once the queue is drained.
func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

// abandon drops undelivered events and closes the event channel
func (s *subscriber) abandon() {
	s.stop.Do(func() { close(s.quit) })
}

// run forwards queued events to the subscriber in the order they were dispatched
func (s *subscriber) run() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-s.wake:
			case <-s.quit:
				return
			}
			continue
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.quit:
			return
		}
	}
}

// EventBus dispatches events to all subscribers on one or more topics.  Subscribers registered
// without a topic are on the default topic and receive every event.  Subscribers can use the
// EventType to filter which events they respond to rather than configuring multiple topics.
type EventBus struct {
	subscribers map[Topic][]*subscriber
	all         []*subscriber
	closed      bool
	mutex       sync.RWMutex
}

// New returns a new event bus
func New() *EventBus {
	return &EventBus{
		subscribers: make(map[Topic][]*subscriber),
	}
}

// Subscribe registers a subscriber to 0 or more topics.  With no topic the subscriber is added
// to the default topic and receives all events published on any topic.
//
// The returned channel receives events and is closed when the subscriber is removed or the bus
// shuts down.  Subscribers should treat a closed channel as a shutdown signal, finish any work
// and then call the ShutdownFunc.
func (e *EventBus) Subscribe(topics ...Topic) (<-chan Event, ShutdownFunc) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		s := &subscriber{ch: make(chan Event), done: make(chan struct{})}
		close(s.ch)
		return s.ch, s.finish
	}
	s := newSubscriber()
	e.all = append(e.all, s)

	if len(topics) == 0 {
		topics = []Topic{defaultTopic}
	}
	for _, topic := range topics {
		e.subscribers[topic] = append(e.subscribers[topic], s)
	}
	return s.ch, s.finish
}

// Unsubscribe removes the subscriber owning c.  Undelivered events are dropped and the channel is
// closed.
func (e *EventBus) Unsubscribe(c <-chan Event) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	var found *subscriber
	for i, s := range e.all {
		if (<-chan Event)(s.ch) == c {
			found = s
			e.all = append(e.all[:i:i], e.all[i+1:]...)
			break
		}
	}
	if found == nil {
		return
	}
	for topic, subs := range e.subscribers {
		e.subscribers[topic] = remove(subs, found)
	}
	found.abandon()
}

// Dispatch sends the event to the given topics and always to the default topic.  Delivery is
// asynchronous but each subscriber receives events in the order they were dispatched, and a
// subscriber on several of the topics receives the event once.  Events published on a topic
// without subscribers are dropped.
func (e *EventBus) Dispatch(event Event, topics ...Topic) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	if e.closed {
		return
	}

	seen := make(map[*subscriber]bool)
	for _, topic := range append(topics[:len(topics):len(topics)], defaultTopic) {
		for _, s := range e.subscribers[topic] {
			if seen[s] {
				continue
			}
			seen[s] = true
			s.push(event)
		}
	}
}

// Shutdown closes every subscriber channel once pending events are delivered and blocks until all
// subscribers call their ShutdownFunc.  It returns ErrShutdownTimeout if the context ends first,
// in which case undelivered events are abandoned.
func (e *EventBus) Shutdown(ctx context.Context) error {
	e.mutex.Lock()
	e.closed = true
	subs := e.all
	e.all = nil
	e.subscribers = make(map[Topic][]*subscriber)
	e.mutex.Unlock()

	for _, s := range subs {
		s.close()
	}

	done := make(chan struct{})
	go shutdownNotify(done, subs)

	select {
	case <-ctx.Done():
		for _, s := range subs {
			s.abandon()
		}
		return ErrShutdownTimeout
	case <-done:
		return nil
	}
}

// shutdownNotify closes done after every subscriber has signalled that it finished
func shutdownNotify(done chan struct{}, all []*subscriber) {
	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *subscriber) {
			defer wg.Done()
			<-s.done
		}(s)
	}
	wg.Wait()
	close(done)
}

func remove(subs []*subscriber, s *subscriber) []*subscriber {
	out := subs[:0:0]
	for _, s1 := range subs {
		if s1 != s {
			out = append(out, s1)
		}
	}
	return out
}
