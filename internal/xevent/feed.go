// Package xevent provides a typed, multi-subscriber event feed in the
// style of go-ethereum's event.Feed, used here to fan out newly
// persisted block headers to local subscribers (e.g. rpc/subscription).
package xevent

import "sync"

// Feed fans a single stream of values out to any number of subscribers.
// The zero value is ready to use. A Feed must not be copied after first
// use.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]chan<- T
}

// Subscription represents one subscriber's registration on a Feed. It is
// released by calling Unsubscribe.
type Subscription[T any] struct {
	feed *Feed[T]
	ch   chan<- T
	once sync.Once
}

// Subscribe registers ch to receive every value sent to the feed from
// this point on. Send blocks until every channel subscribed when Send
// began has accepted the value; Unsubscribe does not release a Send
// already blocked on that channel, so callers should keep ch buffered or
// draining promptly.
func (f *Feed[T]) Subscribe(ch chan<- T) *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[*Subscription[T]]chan<- T)
	}
	sub := &Subscription[T]{feed: f, ch: ch}
	f.subs[sub] = ch
	return sub
}

// Unsubscribe removes s from its feed. Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs, s)
	})
}

// Send delivers v to every current subscriber and returns the number of
// subscribers it was delivered to.
func (f *Feed[T]) Send(v T) int {
	f.mu.Lock()
	chans := make([]chan<- T, 0, len(f.subs))
	for _, ch := range f.subs {
		chans = append(chans, ch)
	}
	f.mu.Unlock()

	for _, ch := range chans {
		ch <- v
	}
	return len(chans)
}
