package xevent

import (
	"testing"
	"time"
)

func TestSendDeliversToAllSubscribers(t *testing.T) {
	var f Feed[int]
	chA := make(chan int, 1)
	chB := make(chan int, 1)
	f.Subscribe(chA)
	f.Subscribe(chB)

	n := f.Send(42)
	if n != 2 {
		t.Fatalf("expected 2 subscribers delivered, got %d", n)
	}

	select {
	case v := <-chA:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on chA")
	}
	select {
	case v := <-chB:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on chB")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	var f Feed[int]
	ch := make(chan int, 1)
	sub := f.Subscribe(ch)
	sub.Unsubscribe()

	if n := f.Send(1); n != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", n)
	}
}
