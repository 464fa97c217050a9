package federation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/developmentseed/stac-collection-federator/pkg/cursor"
	"github.com/developmentseed/stac-collection-federator/pkg/stac"
	"github.com/developmentseed/stac-collection-federator/pkg/upstream"
)

// fakeClient scripts per-source outcomes and counts calls.
type fakeClient struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(ctx context.Context, src stac.Source, state cursor.State) upstream.Outcome
}

func newFakeClient(respond func(ctx context.Context, src stac.Source, state cursor.State) upstream.Outcome) *fakeClient {
	return &fakeClient{calls: make(map[string]int), respond: respond}
}

func (f *fakeClient) Search(ctx context.Context, src stac.Source, req stac.SearchRequest, state cursor.State) upstream.Outcome {
	f.mu.Lock()
	f.calls[src.ID]++
	f.mu.Unlock()
	return f.respond(ctx, src, state)
}

func (f *fakeClient) callCount(sourceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sourceID]
}

func sources(t *testing.T, ids ...string) []stac.Source {
	t.Helper()
	out := make([]stac.Source, len(ids))
	for i, id := range ids {
		src, err := stac.NewSource(id, "https://"+id+".example.com")
		if err != nil {
			t.Fatalf("NewSource(%q): %v", id, err)
		}
		out[i] = src
	}
	return out
}

func TestDispatch_NoSources(t *testing.T) {
	d := NewDispatcher(newFakeClient(nil), nil, DispatchConfig{})

	_, err := d.Dispatch(context.Background(), stac.SearchRequest{}, nil)
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("err = %v, want ErrNoSources", err)
	}
}

func TestDispatch_FansOutToAll(t *testing.T) {
	client := newFakeClient(func(_ context.Context, src stac.Source, _ cursor.State) upstream.Outcome {
		return upstream.SuccessOutcome([]stac.Collection{{ID: src.ID + "-1"}}, "")
	})
	d := NewDispatcher(client, sources(t, "a", "b", "c"), DispatchConfig{})

	outcomes, err := d.Dispatch(context.Background(), stac.SearchRequest{}, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for _, id := range []string{"a", "b", "c"} {
		if client.callCount(id) != 1 {
			t.Errorf("source %s called %d times, want 1", id, client.callCount(id))
		}
		if outcomes[id].Failed() {
			t.Errorf("source %s unexpectedly failed: %v", id, outcomes[id].Failure)
		}
	}
}

func TestDispatch_ExhaustedSourceNotCalled(t *testing.T) {
	client := newFakeClient(func(_ context.Context, src stac.Source, _ cursor.State) upstream.Outcome {
		return upstream.SuccessOutcome([]stac.Collection{{ID: src.ID + "-1"}}, "")
	})
	d := NewDispatcher(client, sources(t, "a", "b"), DispatchConfig{})

	cur := cursor.Logical{"a": {Exhausted: true}, "b": {Next: "https://b.example.com/p2"}}
	outcomes, err := d.Dispatch(context.Background(), stac.SearchRequest{}, cur)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if client.callCount("a") != 0 {
		t.Errorf("exhausted source called %d times, want 0", client.callCount("a"))
	}
	if !outcomes["a"].Exhausted {
		t.Error("exhausted source should yield an empty outcome")
	}
	if client.callCount("b") != 1 {
		t.Errorf("live source called %d times, want 1", client.callCount("b"))
	}
}

func TestDispatch_OneFailureDoesNotAbortOthers(t *testing.T) {
	client := newFakeClient(func(_ context.Context, src stac.Source, _ cursor.State) upstream.Outcome {
		if src.ID == "bad" {
			return upstream.FailureOutcome(upstream.FailureUnreachable, "connection refused")
		}
		return upstream.SuccessOutcome([]stac.Collection{{ID: src.ID + "-1"}}, "")
	})
	d := NewDispatcher(client, sources(t, "good", "bad"), DispatchConfig{})

	outcomes, err := d.Dispatch(context.Background(), stac.SearchRequest{}, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if !outcomes["bad"].Failed() {
		t.Error("bad source should have failed")
	}
	if outcomes["good"].Failed() || len(outcomes["good"].Items) != 1 {
		t.Errorf("good source outcome = %+v, want one item", outcomes["good"])
	}
}

func TestDispatch_RoundTimeoutAbandonsSlowCalls(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := newFakeClient(func(ctx context.Context, src stac.Source, _ cursor.State) upstream.Outcome {
		if src.ID == "slow" {
			// Ignore the context deadline entirely, like a stalled
			// upstream read would.
			<-release
			return upstream.EmptyOutcome()
		}
		return upstream.SuccessOutcome([]stac.Collection{{ID: "fast-1"}}, "")
	})
	d := NewDispatcher(client, sources(t, "fast", "slow"), DispatchConfig{
		CallTimeout:  20 * time.Millisecond,
		RoundTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	outcomes, err := d.Dispatch(context.Background(), stac.SearchRequest{}, nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dispatch took %v, should be bounded by the round timeout", elapsed)
	}

	slow := outcomes["slow"]
	if !slow.Failed() || slow.Failure.Kind != upstream.FailureTimeout {
		t.Errorf("slow outcome = %+v, want timeout failure", slow)
	}
	if outcomes["fast"].Failed() {
		t.Errorf("fast source should have succeeded: %v", outcomes["fast"].Failure)
	}
}
