package player_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/course-client/pkg/player"
)

func TestNew(t *testing.T) {
	c := player.New(newFakeElement(120))

	assert.Equal(t, player.State{Volume: 1}, c.State())
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "in range", in: 0.3, want: 0.3},
		{name: "mute", in: 0, want: 0},
		{name: "above range", in: 1.7, want: 1},
		{name: "below range", in: -0.2, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := newFakeElement(120)
			c := player.New(el)

			c.SetVolume(tt.in)

			assert.Equal(t, tt.want, c.State().Volume)
			assert.Equal(t, tt.want, el.volume)
		})
	}

	t.Run("NaN is ignored", func(t *testing.T) {
		el := newFakeElement(120)
		c := player.New(el)
		c.SetVolume(0.5)

		c.SetVolume(math.NaN())

		assert.Equal(t, 0.5, c.State().Volume)
		assert.Equal(t, 0.5, el.volume)
	})
}

func TestTogglePlay(t *testing.T) {
	t.Run("commits after the element accepted", func(t *testing.T) {
		el := newFakeElement(120)
		c := player.New(el)

		require.NoError(t, c.TogglePlay(t.Context()))
		assert.True(t, c.State().IsPlaying)
		assert.False(t, el.paused)

		require.NoError(t, c.TogglePlay(t.Context()))
		assert.False(t, c.State().IsPlaying)
		assert.True(t, el.paused)
	})

	t.Run("a rejected play keeps the flag in sync", func(t *testing.T) {
		el := newFakeElement(120)
		el.playErr = errNotAllowed
		c := player.New(el)

		err := c.TogglePlay(t.Context())

		require.ErrorIs(t, err, errNotAllowed)
		assert.False(t, c.State().IsPlaying)
		assert.True(t, el.paused)
	})
}

func TestToggleFullscreen(t *testing.T) {
	el := newFakeElement(120)
	el.fullErr = errNotAllowed
	c := player.New(el)

	require.ErrorIs(t, c.ToggleFullscreen(t.Context()), errNotAllowed)
	assert.False(t, c.State().IsFullscreen)

	el.fullErr = nil
	require.NoError(t, c.ToggleFullscreen(t.Context()))
	assert.True(t, c.State().IsFullscreen)
	assert.True(t, el.fullscreen)

	require.NoError(t, c.ToggleFullscreen(t.Context()))
	assert.False(t, c.State().IsFullscreen)
	assert.False(t, el.fullscreen)
}

func TestSeek(t *testing.T) {
	el := newFakeElement(90)
	c := player.New(el)
	defer c.Attach()()
	el.loadMetadata()

	c.Seek(42)
	assert.Equal(t, 42.0, c.State().CurrentTime)
	assert.Equal(t, 42.0, el.current)

	c.Seek(500)
	assert.Equal(t, 90.0, c.State().CurrentTime, "the element clamps to the duration")

	c.Seek(-3)
	assert.Equal(t, 0.0, c.State().CurrentTime)
}

func TestAttach(t *testing.T) {
	t.Run("synchronises time, duration and end of playback", func(t *testing.T) {
		el := newFakeElement(75)
		c := player.New(el)
		detach := c.Attach()
		defer detach()

		assert.Equal(t, 0.0, c.State().Duration, "zero until metadata")

		el.loadMetadata()
		assert.Equal(t, 75.0, c.State().Duration)

		require.NoError(t, c.TogglePlay(t.Context()))
		el.advance(12.5)
		assert.Equal(t, 12.5, c.State().CurrentTime)

		el.dispatch(player.EventEnded)
		assert.False(t, c.State().IsPlaying)
	})

	t.Run("repeated mounts do not leak listeners", func(t *testing.T) {
		el := newFakeElement(75)
		c := player.New(el)

		for range 5 {
			detach := c.Attach()
			assert.Equal(t, 3, el.listenerCount())
			detach()
			detach()
			assert.Zero(t, el.listenerCount())
		}
	})

	t.Run("re-attaching releases the previous listeners", func(t *testing.T) {
		el := newFakeElement(75)
		c := player.New(el)

		first := c.Attach()
		second := c.Attach()
		assert.Equal(t, 3, el.listenerCount())

		first()
		assert.Equal(t, 3, el.listenerCount(), "a stale detach leaves the current listeners alone")

		second()
		assert.Zero(t, el.listenerCount())
	})

	t.Run("no updates after detach", func(t *testing.T) {
		el := newFakeElement(75)
		c := player.New(el)
		c.Attach()()

		el.loadMetadata()
		assert.Zero(t, c.State().Duration)
	})
}

func TestSubscribe(t *testing.T) {
	c := player.New(newFakeElement(10))

	var got []player.State
	unsubscribe := c.Subscribe(func(s player.State) { got = append(got, s) })

	c.SetVolume(0.5)
	unsubscribe()
	c.SetVolume(0.7)

	require.Len(t, got, 1)
	assert.Equal(t, 0.5, got[0].Volume)
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0:00"},
		{in: 5, want: "0:05"},
		{in: 59.99, want: "0:59"},
		{in: 60, want: "1:00"},
		{in: 605.4, want: "10:05"},
		{in: 3600, want: "60:00"},
		{in: 3725, want: "62:05"},
		{in: -1, want: "0:00"},
		{in: math.NaN(), want: "0:00"},
		{in: math.Inf(1), want: "0:00"},
		{in: 1e19, want: "0:00"},
		{in: math.MaxFloat64, want: "0:00"},
		{in: 9.2e18, want: "153333333333333333:20"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, player.FormatTime(tt.in))
		})
	}
}
