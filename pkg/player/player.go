// Package player controls playback of a single media element.
//
// Play/pause and fullscreen are request/acknowledge pairs: the flag is committed only
// once the element accepted the command, so a rejected play (autoplay policy, missing
// source) never leaves IsPlaying out of sync with the element.
package player

import (
	"context"
	"fmt"
	"math"
	"sync"
)

type Event string

const (
	EventTimeUpdate     Event = "timeupdate"
	EventLoadedMetadata Event = "loadedmetadata"
	EventEnded          Event = "ended"
)

// ListenerID identifies a registered listener on a MediaElement.
type ListenerID uint64

// MediaElement is the host's media element.
type MediaElement interface {
	Play(ctx context.Context) error
	Pause() error
	SetVolume(v float64)
	// SetCurrentTime seeks. The element clamps t to its playable range.
	SetCurrentTime(t float64)
	CurrentTime() float64
	// Duration is NaN or 0 until metadata has loaded.
	Duration() float64
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
	AddEventListener(event Event, fn func()) ListenerID
	RemoveEventListener(event Event, id ListenerID)
}

type State struct {
	IsPlaying    bool
	Volume       float64
	CurrentTime  float64
	Duration     float64
	IsFullscreen bool
}

type registration struct {
	event Event
	id    ListenerID
}

type Controller struct {
	el MediaElement

	// cmdMu serialises play and fullscreen requests so each toggle sees the last
	// acknowledged state.
	cmdMu sync.Mutex

	mu         sync.Mutex
	state      State
	attachment *attachment
	subs       map[int]func(State)
	nextSub    int
	seq        uint64

	// notifyMu orders deliveries; a snapshot older than the last delivered one is dropped.
	notifyMu  sync.Mutex
	delivered uint64
}

type attachment struct {
	regs []registration
}

func New(el MediaElement) *Controller {
	return &Controller{
		el:    el,
		state: State{Volume: 1},
		subs:  map[int]func(State){},
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TogglePlay asks the element to play or pause and commits IsPlaying once it accepted.
func (c *Controller) TogglePlay(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	playing := c.State().IsPlaying
	if playing {
		if err := c.el.Pause(); err != nil {
			return fmt.Errorf("pausing: %w", err)
		}
	} else {
		if err := c.el.Play(ctx); err != nil {
			return fmt.Errorf("playing: %w", err)
		}
	}

	c.commit(func(st *State) {
		st.IsPlaying = !playing
	})
	return nil
}

// ToggleFullscreen enters or leaves fullscreen and commits IsFullscreen once the
// element acknowledged.
func (c *Controller) ToggleFullscreen(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	fullscreen := c.State().IsFullscreen
	if fullscreen {
		if err := c.el.ExitFullscreen(ctx); err != nil {
			return fmt.Errorf("exiting fullscreen: %w", err)
		}
	} else {
		if err := c.el.RequestFullscreen(ctx); err != nil {
			return fmt.Errorf("requesting fullscreen: %w", err)
		}
	}

	c.commit(func(st *State) {
		st.IsFullscreen = !fullscreen
	})
	return nil
}

// Seek forwards t to the element and keeps the position the element settled on.
func (c *Controller) Seek(t float64) {
	if math.IsNaN(t) {
		return
	}
	c.el.SetCurrentTime(t)
	current := finite(c.el.CurrentTime())
	c.commit(func(st *State) {
		st.CurrentTime = current
	})
}

// SetVolume clamps v to [0, 1] and applies it to the state and the element. NaN is ignored.
func (c *Controller) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Max(0, math.Min(1, v))

	c.commit(func(st *State) {
		st.Volume = v
	})
	c.el.SetVolume(v)
}

// Attach subscribes to the element's time, metadata and ended events. Calling Attach
// again releases the listeners of the previous call first. The returned detach is
// idempotent.
func (c *Controller) Attach() (detach func()) {
	c.mu.Lock()
	previous := c.attachment
	c.attachment = nil
	c.mu.Unlock()
	c.release(previous)

	a := &attachment{regs: []registration{
		{EventTimeUpdate, c.el.AddEventListener(EventTimeUpdate, c.onTimeUpdate)},
		{EventLoadedMetadata, c.el.AddEventListener(EventLoadedMetadata, c.onLoadedMetadata)},
		{EventEnded, c.el.AddEventListener(EventEnded, c.onEnded)},
	}}

	c.mu.Lock()
	c.attachment = a
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			current := c.attachment == a
			if current {
				c.attachment = nil
			}
			c.mu.Unlock()
			if current {
				c.release(a)
			}
		})
	}
}

func (c *Controller) release(a *attachment) {
	if a == nil {
		return
	}
	for _, r := range a.regs {
		c.el.RemoveEventListener(r.event, r.id)
	}
}

func (c *Controller) onTimeUpdate() {
	current := finite(c.el.CurrentTime())
	c.commit(func(st *State) {
		st.CurrentTime = current
	})
}

func (c *Controller) onLoadedMetadata() {
	duration := finite(c.el.Duration())
	c.commit(func(st *State) {
		st.Duration = duration
	})
}

func (c *Controller) onEnded() {
	c.commit(func(st *State) {
		st.IsPlaying = false
	})
}

// Subscribe registers fn to receive state changes in commit order; a state older than
// one already delivered is skipped. fn must not issue commands on c.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) commit(mutate func(*State)) {
	c.mu.Lock()
	mutate(&c.state)
	c.seq++
	seq := c.seq
	snapshot := c.state
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq
	for _, fn := range subs {
		fn(snapshot)
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// FormatTime renders seconds as M:SS. Minutes keep counting past 59; invalid input
// renders as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 || seconds >= math.MaxInt64 {
		return "0:00"
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
