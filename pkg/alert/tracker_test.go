package alert

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/BTBurke/spc/pkg/eventbus"
	"github.com/BTBurke/spc/pkg/fsm"
	"github.com/BTBurke/spc/pkg/sample"
	"github.com/BTBurke/spc/pkg/stat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(event eventbus.Event, topics ...eventbus.Topic) {
	m.Called(event, topics)
}

var fixed = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestTracker(d Dispatcher) *Tracker {
	t := NewTracker(d)
	t.now = func() time.Time { return fixed }
	return t
}

func TestObserveDeduplicates(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, []eventbus.Topic{Topic}).Return()
	tr := newTestTracker(d)
	name := sample.ForStation("bore", "P-100", "S1")

	tt := []struct {
		alert   stat.AlertType
		cpk     float64
		changed bool
	}{
		{alert: stat.AlertNone, cpk: 1.4, changed: false},
		{alert: stat.AlertWarning, cpk: 1.2, changed: true},
		{alert: stat.AlertWarning, cpk: 1.1, changed: false},
		{alert: stat.AlertCritical, cpk: 0.8, changed: true},
		{alert: stat.AlertNone, cpk: 1.5, changed: true},
		{alert: stat.AlertExcellent, cpk: math.Inf(1), changed: true},
	}
	for _, tc := range tt {
		_, changed, err := tr.Observe(name, tc.alert, stat.Index(tc.cpk))
		require.NoError(t, err)
		assert.Equal(t, tc.changed, changed, "alert %s", tc.alert)
		assert.Equal(t, tc.alert, tr.State(name))
	}
	d.AssertNumberOfCalls(t, "Dispatch", 4)
}

func TestObserveNotification(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return()
	tr := newTestTracker(d)
	name := sample.ForStation("bore", "P-100", "S1")

	n, changed, err := tr.Observe(name, stat.AlertCritical, stat.Index(0.8))
	require.NoError(t, err)
	require.True(t, changed)
	exp := Notification{
		AlertType:      stat.AlertCritical,
		Previous:       stat.AlertNone,
		Cpk:            stat.Index(0.8),
		Classification: stat.NeedsImprovement,
		ProductCode:    "P-100",
		StationName:    "S1",
		Characteristic: "bore",
		Time:           fixed,
	}
	assert.Equal(t, exp, n)
	d.AssertCalled(t, "Dispatch", eventbus.Event{EventType: Changed, Data: exp}, []eventbus.Topic{Topic})

	n, _, err = tr.Observe(name, stat.AlertNone, stat.Index(1.4))
	require.NoError(t, err)
	assert.True(t, n.Recovered())
}

func TestObserveIndependentKeys(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return()
	tr := newTestTracker(d)

	a := sample.ForStation("bore", "P-100", "S1")
	b := sample.ForStation("bore", "P-100", "S2")
	_, changed, err := tr.Observe(a, stat.AlertWarning, stat.Index(1.1))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, stat.AlertNone, tr.State(b))

	tr.Reset(a)
	assert.Equal(t, stat.AlertNone, tr.State(a))
	_, changed, err = tr.Observe(a, stat.AlertWarning, stat.Index(1.1))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestObserveUnknownAlert(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return()
	tr := newTestTracker(d)
	name := sample.NewName("bore", nil)

	_, _, err := tr.Observe(name, stat.AlertType("panic"), stat.Index(0))
	assert.True(t, errors.As(err, &fsm.TransitionNotAllowed{}))

	// tracking stays stopped until the characteristic is reset
	_, _, err = tr.Observe(name, stat.AlertWarning, stat.Index(1.2))
	assert.True(t, errors.As(err, &fsm.StopError{}))
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)

	tr.Reset(name)
	_, changed, err := tr.Observe(name, stat.AlertWarning, stat.Index(1.2))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestObserveOnBus(t *testing.T) {
	bus := eventbus.New()
	c, done := bus.Subscribe(Topic)
	tr := NewTracker(bus)

	_, _, err := tr.Observe(sample.ForStation("bore", "P-100", "S1"), stat.AlertWarning, stat.Index(1.2))
	require.NoError(t, err)

	select {
	case ev := <-c:
		assert.Equal(t, Changed, ev.EventType)
		n, ok := ev.Data.(Notification)
		require.True(t, ok)
		assert.Equal(t, stat.AlertWarning, n.AlertType)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	go func() {
		for range c {
		}
		done()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, bus.Shutdown(ctx))
}
