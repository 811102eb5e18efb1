package pathcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/types"
)

func TestPointsToPath(t *testing.T) {
	points := []types.Point{{X: 1, Y: 2}, {X: 3.5, Y: 4}, {X: 5, Y: 6.25}}
	assert.Equal(t, "M 1,2 3.5,4 5,6.25 Z", PointsToPath(points))
	assert.Equal(t, "", PointsToPath(nil))
}

func TestRoundTrip(t *testing.T) {
	cases := [][]types.Point{
		{{X: 0, Y: 0}},
		{{X: 834.72, Y: 329.895}, {X: 834.72, Y: 1182.965}, {X: 1204.675, Y: 1182.965}},
		{{X: -1.5, Y: 2e-7}, {X: 1e6, Y: 0.1}, {X: 0.30000000000000004, Y: 7}},
	}

	for _, points := range cases {
		got := PathToPoints(PointsToPath(points))
		require.Len(t, got, len(points))
		for i := range points {
			assert.InDelta(t, points[i].X, got[i].X, 1e-9)
			assert.InDelta(t, points[i].Y, got[i].Y, 1e-9)
		}
	}
}

func TestPathToPointsDropsMalformedTokens(t *testing.T) {
	got := PathToPoints("M 1,2 bogus 3,4 5 6,x 7,8,9 Z")
	assert.Equal(t, []types.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 7, Y: 8}}, got)

	got = PathToPoints("M 1,2 NaN,3 4,5 Inf,1 2,+Inf -inf,0 Z")
	assert.Equal(t, []types.Point{{X: 1, Y: 2}, {X: 4, Y: 5}}, got)
}

func TestPathToPointsWithoutSpaceAfterMarker(t *testing.T) {
	got := PathToPoints("M1,2 3,4 5,6Z")
	assert.Equal(t, []types.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}, got)
}

func TestParseServerGeometry(t *testing.T) {
	got, err := Parse("M834.72 329.895v853.07h369.955v-853.07Z")
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []types.Point{
		{X: 834.72, Y: 329.895},
		{X: 834.72, Y: 1182.965},
		{X: 1204.675, Y: 1182.965},
		{X: 1204.675, Y: 329.895},
	}
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, 1e-6)
		assert.InDelta(t, want[i].Y, got[i].Y, 1e-6)
	}
}

func TestParseAbsoluteAndImplicitCommands(t *testing.T) {
	got, err := Parse("M 10 10 20 10 L 20,20 H 5 V 15 z")
	require.NoError(t, err)
	assert.Equal(t, []types.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 5, Y: 20}, {X: 5, Y: 15}}, got)
}

func TestParseCompactNumbers(t *testing.T) {
	got, err := Parse("M1-2l.5.5-1e1,0Z")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, types.Point{X: 1, Y: -2}, got[0])
	assert.Equal(t, types.Point{X: 1.5, Y: -1.5}, got[1])
	assert.Equal(t, types.Point{X: -8.5, Y: -1.5}, got[2])
}

func TestParseRejectsCurves(t *testing.T) {
	_, err := Parse("M0 0 C 1 1 2 2 3 3 Z")
	assert.Error(t, err)

	_, err = Parse("10 10 L 2 2")
	assert.Error(t, err)
}

func TestCommandsClose(t *testing.T) {
	cmds, err := Commands("M0 0 L1 0 L1 1 Z")
	require.NoError(t, err)
	require.Len(t, cmds, 4)
	assert.Equal(t, OpClose, cmds[3].Op)
	assert.Equal(t, types.Point{}, cmds[3].P)
	assert.Equal(t, "close", cmds[3].Op.String())
}

func TestVerticesFallsBackToParse(t *testing.T) {
	assert.Len(t, Vertices("M 1,2 3,4 5,6 Z"), 3)
	assert.Len(t, Vertices("M0 0h10v10h-10Z"), 4)
	assert.Empty(t, Vertices("not a path"))
}

func TestVerticesExplicitLineCommands(t *testing.T) {
	got := Vertices("M10,10 L20,20 L30,10 Z")
	assert.Equal(t, []types.Point{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 10}}, got)

	got = Vertices("M 1,2 NaN,3 4,5 Z")
	assert.Equal(t, []types.Point{{X: 1, Y: 2}, {X: 4, Y: 5}}, got)
}

func TestBoundsAndArea(t *testing.T) {
	square := []types.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	min, max, ok := Bounds(square)
	require.True(t, ok)
	assert.Equal(t, types.Point{X: 0, Y: 0}, min)
	assert.Equal(t, types.Point{X: 10, Y: 10}, max)
	assert.InDelta(t, 100, Area(square), 1e-9)

	_, _, ok = Bounds(nil)
	assert.False(t, ok)
	assert.Zero(t, Area(square[:2]))
}
