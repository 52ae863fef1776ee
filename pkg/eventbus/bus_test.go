package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case e, ok := <-c:
		return e, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}, false
	}
}

func TestSubscribe(t *testing.T) {
	tt := []struct {
		Name     string
		Topics   []Topic
		Expected []Topic
	}{
		{Name: "add default", Topics: []Topic{}, Expected: []Topic{defaultTopic}},
		{Name: "create topic on subscribe", Topics: []Topic{Topic("test")}, Expected: []Topic{Topic("test")}},
		{Name: "multi topic subscribe", Topics: []Topic{Topic("test1"), Topic("test2")}, Expected: []Topic{Topic("test1"), Topic("test2")}},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			e := New()
			c, _ := e.Subscribe(tc.Topics...)
			require.Len(t, e.all, 1)
			assert.Equal(t, c, (<-chan Event)(e.all[0].ch))
			assert.Len(t, e.subscribers, len(tc.Expected))
			for _, topic := range tc.Expected {
				assert.Equal(t, []*subscriber{e.all[0]}, e.subscribers[topic])
			}
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	e := New()
	c1, _ := e.Subscribe()
	c2, _ := e.Subscribe()
	c3, _ := e.Subscribe(Topic("test"))
	c4, _ := e.Subscribe(Topic("test"))

	e.Unsubscribe(c1)
	assert.Len(t, e.subscribers[defaultTopic], 1)
	assert.Len(t, e.all, 3)
	_, ok := receive(t, c1)
	assert.False(t, ok, "unsubscribed channel should be closed")

	e.Unsubscribe(c3)
	assert.Len(t, e.subscribers[Topic("test")], 1)
	assert.Len(t, e.all, 2)

	e.Dispatch(Event{EventType: "x"}, Topic("test"))
	ev, ok := receive(t, c2)
	assert.True(t, ok)
	assert.Equal(t, EventType("x"), ev.EventType)
	ev, ok = receive(t, c4)
	assert.True(t, ok)
	assert.Equal(t, EventType("x"), ev.EventType)
}

func TestDispatch(t *testing.T) {
	const (
		Topic1 Topic = "topic1"
		Topic2 Topic = "topic2"
	)
	event := Event{EventType: EventType("test"), Data: 42}

	e := New()
	all, _ := e.Subscribe()
	one, _ := e.Subscribe(Topic1)
	two, _ := e.Subscribe(Topic2)
	both, _ := e.Subscribe(Topic1, Topic2)

	e.Dispatch(event, Topic1, Topic2)

	for _, c := range []<-chan Event{all, one, two, both} {
		got, ok := receive(t, c)
		assert.True(t, ok)
		assert.Equal(t, event, got)
	}

	// a subscriber on several matching topics receives a single copy
	select {
	case extra := <-both:
		t.Fatalf("unexpected duplicate event %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	// events on other topics only reach the default subscriber
	e.Dispatch(event)
	got, ok := receive(t, all)
	assert.True(t, ok)
	assert.Equal(t, event, got)
	select {
	case extra := <-one:
		t.Fatalf("unexpected event on topic subscriber %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestShutdown(t *testing.T) {
	receiver := func(c <-chan Event, sd ShutdownFunc, delay time.Duration) {
		for range c {
		}
		time.Sleep(delay)
		sd()
	}

	tt := []struct {
		Name      string
		Timeout   time.Duration
		ExpectErr bool
	}{
		{Name: "no cancel", Timeout: 5 * time.Second, ExpectErr: false},
		{Name: "cancel", Timeout: 50 * time.Millisecond, ExpectErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			e := New()
			for i := 0; i < 100; i++ {
				c, sd := e.Subscribe()
				go receiver(c, sd, 200*time.Millisecond)
			}
			e.Dispatch(Event{EventType: "before-shutdown"})

			ctx, cancel := context.WithTimeout(context.Background(), tc.Timeout)
			defer cancel()
			err := e.Shutdown(ctx)

			if tc.ExpectErr {
				assert.ErrorIs(t, err, ErrShutdownTimeout)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubscribeAfterShutdown(t *testing.T) {
	e := New()
	require.NoError(t, e.Shutdown(context.Background()))
	c, sd := e.Subscribe()
	_, ok := receive(t, c)
	assert.False(t, ok)
	sd()
	e.Dispatch(Event{EventType: "ignored"})
}

func TestDispatchOrder(t *testing.T) {
	e := New()
	c, sd := e.Subscribe(Topic("alerts"))

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range c {
			got = append(got, ev.Data.(int))
		}
		sd()
	}()

	want := make([]int, 500)
	for i := range want {
		want[i] = i
		e.Dispatch(Event{EventType: "seq", Data: i}, Topic("alerts"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))
	<-done
	assert.Equal(t, want, got)
}
