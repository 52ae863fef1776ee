// Package alert tracks the alert state of each monitored characteristic and announces changes on
// an event bus
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/BTBurke/spc/pkg/eventbus"
	"github.com/BTBurke/spc/pkg/fsm"
	"github.com/BTBurke/spc/pkg/sample"
	"github.com/BTBurke/spc/pkg/stat"
)

const (
	// Topic is the event bus topic carrying alert notifications
	Topic eventbus.Topic = "alerts"
	// Changed is the event type of a Notification
	Changed eventbus.EventType = "alert_changed"
)

// Notification is the payload handed to notification collaborators when the alert state of a
// characteristic changes
type Notification struct {
	AlertType      stat.AlertType      `json:"alertType"`
	Previous       stat.AlertType      `json:"previous"`
	Cpk            stat.Index          `json:"cpkValue"`
	Classification stat.Classification `json:"classification"`
	ProductCode    string              `json:"productCode"`
	StationName    string              `json:"stationName"`
	Characteristic string              `json:"characteristic"`
	Time           time.Time           `json:"time"`
}

// Recovered reports whether the notification announces a return to normal from a warning or
// critical state
func (n Notification) Recovered() bool {
	return n.AlertType == stat.AlertNone && (n.Previous == stat.AlertWarning || n.Previous == stat.AlertCritical)
}

// Key identifies the characteristic a notification belongs to
func (n Notification) Key() string {
	return n.Characteristic + "\x00" + n.ProductCode + "\x00" + n.StationName
}

func (n Notification) String() string {
	return fmt.Sprintf("%s %s -> %s cpk=%v product=%s station=%s", n.Characteristic, n.Previous, n.AlertType, n.Cpk.Float(), n.ProductCode, n.StationName)
}

var (
	none      = fsm.State(stat.AlertNone)
	warning   = fsm.State(stat.AlertWarning)
	critical  = fsm.State(stat.AlertCritical)
	excellent = fsm.State(stat.AlertExcellent)
)

// Cpk can move from any band to any other between two analyses, so every alert type may follow
// every other
var transitions = fsm.WithTransitions(
	fsm.T(none, warning, critical, excellent),
	fsm.T(warning, none, critical, excellent),
	fsm.T(critical, none, warning, excellent),
	fsm.T(excellent, none, warning, critical),
)

// Dispatcher is the part of the event bus the tracker publishes to
type Dispatcher interface {
	Dispatch(event eventbus.Event, topics ...eventbus.Topic)
}

// Tracker keeps one state machine per characteristic.  Repeated observations of the same alert
// type are suppressed so collaborators are only notified of changes.  It is safe for concurrent use.
type Tracker struct {
	bus      Dispatcher
	mu       sync.Mutex
	machines map[string]*fsm.Machine
	now      func() time.Time
}

// NewTracker returns a tracker publishing to bus
func NewTracker(bus Dispatcher) *Tracker {
	return &Tracker{
		bus:      bus,
		machines: make(map[string]*fsm.Machine),
		now:      time.Now,
	}
}

// Observe records the latest evaluation of a characteristic.  When the alert type differs from
// the previous observation a Notification is dispatched and returned with true.  The first
// observation of a characteristic starts from the none state.  An unknown alert type stops
// tracking of the characteristic and further observations fail until Reset.
func (t *Tracker) Observe(name sample.Name, alertType stat.AlertType, cpk stat.Index) (Notification, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := name.String()
	m, ok := t.machines[key]
	if !ok {
		var err error
		m, err = fsm.NewMachine(none, transitions, fsm.WithStoppable())
		if err != nil {
			return Notification{}, false, err
		}
		t.machines[key] = m
	}

	previous := stat.AlertType(m.State())
	changed, err := m.Transition(fsm.State(alertType))
	if err != nil {
		return Notification{}, false, fmt.Errorf("alert: observe %s as %q: %w", key, alertType, err)
	}
	if !changed {
		return Notification{}, false, nil
	}

	n := Notification{
		AlertType:      alertType,
		Previous:       previous,
		Cpk:            cpk,
		Classification: stat.Classify(cpk.Float()),
		ProductCode:    name.Product(),
		StationName:    name.Station(),
		Characteristic: name.Base(),
		Time:           t.now(),
	}
	t.bus.Dispatch(eventbus.Event{EventType: Changed, Data: n}, Topic)
	return n, true, nil
}

// State returns the current alert type of a characteristic, or none if it was never observed
func (t *Tracker) State(name sample.Name) stat.AlertType {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.machines[name.String()]; ok {
		return stat.AlertType(m.State())
	}
	return stat.AlertNone
}

// Reset returns a characteristic to the none state and resumes tracking after an unknown alert
// type
func (t *Tracker) Reset(name sample.Name) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.machines[name.String()]; ok {
		m.Reset()
	}
}
