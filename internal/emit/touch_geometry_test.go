package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"momentum-mouse/internal/config"
)

// newTestTouch builds a Touch with no backing fd, for exercising the pure
// coordinate arithmetic (seat/jumpTo/outOfBounds) without /dev/uinput.
func newTestTouch(axis config.ScrollAxis, w, h float64) *Touch {
	t := &Touch{axis: axis, w: w, h: h}
	t.seat(w/2-fingerSeparation/2, h/2)
	return t
}

func TestSeatKeepsFingerSeparationVertical(t *testing.T) {
	tp := newTestTouch(config.AxisVertical, 1000, 1000)
	require.Equal(t, tp.f0y, tp.f1y)
	require.InDelta(t, fingerSeparation, tp.f1x-tp.f0x, 1e-9)
}

func TestSeatKeepsFingerSeparationHorizontal(t *testing.T) {
	tp := newTestTouch(config.AxisHorizontal, 1000, 1000)
	require.Equal(t, tp.f0y, tp.f1y)
	require.InDelta(t, fingerSeparation, tp.f1x-tp.f0x, 1e-9)
}

func TestOutOfBounds(t *testing.T) {
	tp := newTestTouch(config.AxisVertical, 1000, 2000)
	require.False(t, tp.outOfBounds(500, 1000))
	require.True(t, tp.outOfBounds(-1, 1000))
	require.True(t, tp.outOfBounds(500, 2001))
}

func TestJumpToVerticalLandsAtOffsetFromFarEdge(t *testing.T) {
	tp := newTestTouch(config.AxisVertical, 1000, 2000)
	tp.jumpTo(+1) // positive delta hit the far (bottom) edge, jump to top
	require.InDelta(t, 50.0, tp.f0y, 1e-9)
	require.InDelta(t, 50.0, tp.f1y, 1e-9)
	require.InDelta(t, fingerSeparation, tp.f1x-tp.f0x, 1e-9)

	tp.jumpTo(-1) // negative delta hit the near (top) edge, jump to bottom
	require.InDelta(t, tp.h-50.0, tp.f0y, 1e-9)
}

func TestJumpToHorizontalLandsAtOffsetFromFarEdge(t *testing.T) {
	tp := newTestTouch(config.AxisHorizontal, 1000, 2000)
	tp.jumpTo(+1)
	require.InDelta(t, 50.0, tp.f0x, 1e-9)
	require.InDelta(t, fingerSeparation, tp.f1x-tp.f0x, 1e-9)
	require.Equal(t, tp.f0y, tp.f1y)

	tp.jumpTo(-1)
	require.InDelta(t, tp.w-50.0-fingerSeparation, tp.f0x, 1e-9)
	require.InDelta(t, fingerSeparation, tp.f1x-tp.f0x, 1e-9)
}
