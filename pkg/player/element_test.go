package player_test

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/openkcm/course-client/pkg/player"
)

var errNotAllowed = errors.New("NotAllowedError: play() failed because the user didn't interact with the document first")

// fakeElement behaves like an HTML media element with a fixed duration.
type fakeElement struct {
	mu          sync.Mutex
	duration    float64
	current     float64
	volume      float64
	paused      bool
	fullscreen  bool
	playErr     error
	fullErr     error
	nextID      player.ListenerID
	listeners   map[player.Event]map[player.ListenerID]func()
	metadataSet bool
}

func newFakeElement(duration float64) *fakeElement {
	return &fakeElement{
		duration:  duration,
		volume:    1,
		paused:    true,
		listeners: map[player.Event]map[player.ListenerID]func(){},
	}
}

func (e *fakeElement) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playErr != nil {
		return e.playErr
	}
	e.paused = false
	return nil
}

func (e *fakeElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	return nil
}

func (e *fakeElement) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
}

func (e *fakeElement) SetCurrentTime(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = math.Max(0, math.Min(e.durationLocked(), t))
}

func (e *fakeElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *fakeElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked()
}

func (e *fakeElement) durationLocked() float64 {
	if !e.metadataSet {
		return math.NaN()
	}
	return e.duration
}

func (e *fakeElement) RequestFullscreen(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fullErr != nil {
		return e.fullErr
	}
	e.fullscreen = true
	return nil
}

func (e *fakeElement) ExitFullscreen(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fullscreen = false
	return nil
}

func (e *fakeElement) AddEventListener(event player.Event, fn func()) player.ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	if e.listeners[event] == nil {
		e.listeners[event] = map[player.ListenerID]func(){}
	}
	e.listeners[event][e.nextID] = fn
	return e.nextID
}

func (e *fakeElement) RemoveEventListener(event player.Event, id player.ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners[event], id)
}

func (e *fakeElement) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, l := range e.listeners {
		n += len(l)
	}
	return n
}

func (e *fakeElement) dispatch(event player.Event) {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.listeners[event]))
	for _, fn := range e.listeners[event] {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (e *fakeElement) loadMetadata() {
	e.mu.Lock()
	e.metadataSet = true
	e.mu.Unlock()
	e.dispatch(player.EventLoadedMetadata)
}

func (e *fakeElement) advance(t float64) {
	e.mu.Lock()
	e.current = t
	e.mu.Unlock()
	e.dispatch(player.EventTimeUpdate)
}
