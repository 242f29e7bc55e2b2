package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dshills/canvasevents/internal/event/topic"
)

func startedBus(t *testing.T, opts ...BusOption) Bus {
	t.Helper()
	b := NewBus(opts...)
	if err := b.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return b
}

func TestBus_StartStop(t *testing.T) {
	b := NewBus()

	if err := b.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !b.IsRunning() {
		t.Error("expected bus to be running after Start()")
	}
	if err := b.Start(); err != ErrBusAlreadyRunning {
		t.Errorf("expected ErrBusAlreadyRunning, got %v", err)
	}

	ctx := context.Background()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := b.Stop(ctx); err != ErrBusNotRunning {
		t.Errorf("expected ErrBusNotRunning, got %v", err)
	}
	if err := b.Publish(ctx, NewEvent(topic.Topic("ns:x"), 1, "test")); err != ErrBusNotRunning {
		t.Errorf("expected ErrBusNotRunning from Publish, got %v", err)
	}
}

func TestBus_PublishSynchronous(t *testing.T) {
	b := startedBus(t)

	var got []int
	_, err := b.Subscribe("ns:number", AsHandler(func(_ context.Context, e Event[int]) error {
		got = append(got, e.Payload)
		return nil
	}))
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := b.Publish(context.Background(), NewEvent(topic.Topic("ns:number"), i, "test")); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
		// Delivery completes before Publish returns.
		if len(got) != i {
			t.Fatalf("after publish %d handler saw %v", i, got)
		}
	}
}

func TestBus_PriorityThenSubscriptionOrder(t *testing.T) {
	b := startedBus(t)
	var order []string

	record := func(name string) HandlerFunc {
		return func(context.Context, any) error {
			order = append(order, name)
			return nil
		}
	}

	b.SubscribeFunc("ns:**", record("low"), WithPriority(PriorityLow))
	b.SubscribeFunc("ns:evt", record("normal-1"))
	b.SubscribeFunc("ns:*", record("normal-2"))
	b.SubscribeFunc("ns:evt", record("critical"), WithPriority(PriorityCritical))

	if err := b.Publish(context.Background(), NewEvent(topic.Topic("ns:evt"), struct{}{}, "test")); err != nil {
		t.Fatal(err)
	}

	want := []string{"critical", "normal-1", "normal-2", "low"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBus_HandlerFailuresAreIsolated(t *testing.T) {
	var panics int
	b := startedBus(t, WithBusPanicHandler(func(any, any, []byte) { panics++ }))

	reached := false
	b.SubscribeFunc("ns:evt", func(context.Context, any) error { return errors.New("bad") })
	b.SubscribeFunc("ns:evt", func(context.Context, any) error { panic("worse") })
	b.SubscribeFunc("ns:evt", func(context.Context, any) error { reached = true; return nil })

	if err := b.Publish(context.Background(), NewEvent(topic.Topic("ns:evt"), 0, "test")); err != nil {
		t.Fatalf("Publish() must absorb handler failures, got %v", err)
	}
	if !reached {
		t.Error("handler after failing handlers was not reached")
	}
	if panics != 1 {
		t.Errorf("expected panic handler once, got %d", panics)
	}

	s := b.Stats()
	if s.HandlerErrors != 1 || s.HandlerPanics != 1 || s.EventsDelivered != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestBus_OnceAndUnsubscribe(t *testing.T) {
	b := startedBus(t)
	ctx := context.Background()

	onceCount := 0
	b.SubscribeFunc("ns:evt", func(context.Context, any) error { onceCount++; return nil }, WithOnce())

	count := 0
	sub, _ := b.SubscribeFunc("ns:evt", func(context.Context, any) error { count++; return nil })

	b.Publish(ctx, NewEvent(topic.Topic("ns:evt"), 0, "test"))
	b.Publish(ctx, NewEvent(topic.Topic("ns:evt"), 0, "test"))

	if onceCount != 1 {
		t.Errorf("once handler ran %d times", onceCount)
	}
	if count != 2 {
		t.Errorf("regular handler ran %d times", count)
	}

	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() failed: %v", err)
	}
	if err := b.Unsubscribe(sub); err != ErrSubscriptionNotFound {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
	b.Publish(ctx, NewEvent(topic.Topic("ns:evt"), 0, "test"))
	if count != 2 {
		t.Errorf("unsubscribed handler still ran")
	}
	if b.Stats().ActiveSubscribers != 0 {
		t.Errorf("expected no active subscribers, got %d", b.Stats().ActiveSubscribers)
	}
}

func TestBus_FilterAndPause(t *testing.T) {
	b := startedBus(t)
	ctx := context.Background()

	var got []int
	sub, _ := b.Subscribe("ns:n", AsHandler(func(_ context.Context, e Event[int]) error {
		got = append(got, e.Payload)
		return nil
	}), WithFilter(func(ev any) bool {
		return ev.(Event[int]).Payload%2 == 0
	}))

	for i := 0; i < 4; i++ {
		b.Publish(ctx, NewEvent(topic.Topic("ns:n"), i, "test"))
	}
	sub.Pause()
	b.Publish(ctx, NewEvent(topic.Topic("ns:n"), 10, "test"))
	sub.Resume()
	b.Publish(ctx, NewEvent(topic.Topic("ns:n"), 12, "test"))

	want := []int{0, 2, 12}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBus_SubscribeValidation(t *testing.T) {
	b := NewBus()

	if _, err := b.Subscribe("ns:x", nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
	if _, err := b.SubscribeFunc("ns:x", nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
	if _, err := b.SubscribeFunc("ns::x", func(context.Context, any) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("expected ErrInvalidTopic, got %v", err)
	}
	if err := b.Unsubscribe(nil); err != ErrInvalidSubscription {
		t.Errorf("expected ErrInvalidSubscription, got %v", err)
	}
}

func TestBus_InvalidEvent(t *testing.T) {
	b := startedBus(t)
	if err := b.Publish(context.Background(), "no topic"); err != ErrInvalidEvent {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestBus_ReentrantPublish(t *testing.T) {
	b := startedBus(t)
	ctx := context.Background()
	var order []string

	b.SubscribeFunc("ns:outer", func(ctx context.Context, _ any) error {
		order = append(order, "outer-start")
		if err := b.Publish(ctx, NewEvent(topic.Topic("ns:inner"), 0, "test")); err != nil {
			return err
		}
		order = append(order, "outer-end")
		return nil
	})
	b.SubscribeFunc("ns:inner", func(context.Context, any) error {
		order = append(order, "inner")
		return nil
	})

	if err := b.Publish(ctx, NewEvent(topic.Topic("ns:outer"), 0, "test")); err != nil {
		t.Fatal(err)
	}

	want := []string{"outer-start", "inner", "outer-end"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	b := startedBus(t)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub, err := b.SubscribeFunc("ns:**", func(context.Context, any) error { return nil })
				if err != nil {
					t.Error(err)
					return
				}
				_ = b.Publish(context.Background(), NewEvent(topic.Topic("ns:evt"), j, "test"))
				_ = b.Unsubscribe(sub)
			}
		}()
	}
	wg.Wait()
}

func TestToEnvelope(t *testing.T) {
	evt := NewEvent(topic.Topic("ns:evt"), 42, "src")
	env := ToEnvelope(evt)

	if env.Topic != "ns:evt" || env.Payload != 42 || env.Metadata.Source != "src" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if env.Metadata.ID == "" || env.Metadata.Version != 1 {
		t.Errorf("metadata not populated: %+v", env.Metadata)
	}
	if ToEnvelope(env) != env {
		t.Error("envelope must convert to itself")
	}
	if ToEnvelope(7).Topic != "" {
		t.Error("non-event must produce empty envelope")
	}
}

func TestPublisher(t *testing.T) {
	b := startedBus(t)
	p := NewPublisher(b, "workspace")

	var meta Metadata
	b.Subscribe("ns:evt", AsHandler(func(_ context.Context, e Event[string]) error {
		meta = e.Metadata
		return nil
	}))

	if err := PublishEvent(context.Background(), p, "ns:evt", "hello"); err != nil {
		t.Fatal(err)
	}
	if meta.Source != "workspace" {
		t.Errorf("source = %q", meta.Source)
	}
	if p.Source() != "workspace" || p.Bus() != b {
		t.Error("publisher accessors broken")
	}
}
