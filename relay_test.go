package main

import (
	"context"
	"testing"
	"time"

	"github.com/rubiojr/walkmap/pkg/geo"
	"github.com/rubiojr/walkmap/pkg/location"
)

func TestRelaySubscribeWithFullQueue(t *testing.T) {
	rl := newLocationRelay()
	rl.Publish(location.Fix{Lat: 31.91, Lng: 131.42})

	// nobody reads this queue
	c := &relayClient{id: "stuck", send: make(chan []byte)}
	done := make(chan int, 1)
	go func() { done <- rl.subscribe(c) }()

	select {
	case n := <-done:
		if n != 1 || rl.Subscribers() != 1 {
			t.Errorf("subscribers = %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe blocked on a full queue")
	}

	// publishing to the stuck client does not block either
	published := make(chan bool, 1)
	go func() { published <- rl.Publish(location.Fix{Lat: 31.92, Lng: 131.42}) }()
	select {
	case ok := <-published:
		if !ok {
			t.Error("fix rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked")
	}
}

// A fix published a while ago is replayed on connect and still anchors a
// tracker running with the stock options.
func TestRelayReplaysOldFixToTracker(t *testing.T) {
	srv, a := testAPI(t, &fakePlanner{})
	stamp := time.Now().Add(-3 * time.Second).UTC()
	a.relay.Publish(location.Fix{Lat: 31.91, Lng: 131.42, Accuracy: 20, Timestamp: stamp})

	tr := location.NewTracker(location.NewWebSocketSource(relayURL(srv.URL)), location.DefaultOptions)
	got := make(chan geo.Position, 1)
	tr.OnFix = func(p geo.Position) {
		select {
		case got <- p:
		default:
		}
	}
	tr.Start(context.Background())
	defer tr.Stop()

	select {
	case p := <-got:
		if p.Lat != 31.91 || !p.Timestamp.Equal(stamp) {
			t.Errorf("fix = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replayed fix never reached the tracker")
	}
	if _, ok := tr.Current(); !ok {
		t.Error("no current position")
	}
}
