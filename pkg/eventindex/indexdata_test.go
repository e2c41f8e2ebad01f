package eventindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexDataGetOnEmpty(t *testing.T) {
	d := New(1000)
	require.False(t, d.Get(0))
}

func TestIndexDataSetRangeAndGet(t *testing.T) {
	d := New(1000)
	require.NoError(t, d.SetRange(0, 3000, true))
	require.True(t, d.Get(0))
	require.True(t, d.Get(1500))
	require.True(t, d.Get(2999))
	require.False(t, d.Get(3000))
}

func TestIndexDataAlignmentError(t *testing.T) {
	d := New(1000)
	err := d.SetRange(0, 3500, true)
	require.Error(t, err)
}

func TestIndexDataAnchorMovesDownOnEarlierSetRange(t *testing.T) {
	d := New(1000)
	require.NoError(t, d.SetRange(8000, 9000, true))
	start, ok := d.StartBlock()
	require.True(t, ok)
	require.Equal(t, int64(8000), start)

	// A set range below the current anchor, still grid-aligned, should
	// shift the anchor down to a multiple of 8*G and left-pad the mask.
	require.NoError(t, d.SetRange(0, 1000, true))
	start, ok = d.StartBlock()
	require.True(t, ok)
	require.Equal(t, int64(0), start)
	require.True(t, d.Get(0))
	require.True(t, d.Get(8000))
	require.False(t, d.Get(1000))
}

func TestIndexDataEndBlockIsExclusiveUpperBound(t *testing.T) {
	d := New(1000)
	require.NoError(t, d.SetRange(0, 5000, true))
	d.SetEndBlock(3000)
	require.True(t, d.Get(2999))
	require.False(t, d.Get(3000))
	require.False(t, d.Get(4000))
}

func TestIndexDataSnapToGrid(t *testing.T) {
	d := New(1000)
	require.Equal(t, int64(3000), d.SnapToGrid(3500))
	require.Equal(t, int64(3000), d.SnapToGrid(3000))
}

func TestIndexDataSerializeRoundTrip(t *testing.T) {
	d := New(1000)
	require.NoError(t, d.SetRange(0, 3000, true))
	d.SetEndBlock(4000)

	data := d.Serialize()
	back := Deserialize(1000, data)

	require.True(t, back.Get(0))
	require.True(t, back.Get(2999))
	end, ok := back.EndBlock()
	require.True(t, ok)
	require.Equal(t, int64(4000), end)
}

func TestIndexDataDeserializeEmpty(t *testing.T) {
	d := Deserialize(1000, nil)
	require.False(t, d.Get(0))
	_, ok := d.StartBlock()
	require.False(t, ok)
}

// TestScenarioACoverageBasedSkip models the first step of the grid-fetching
// scenario: blocks [0, 3000) are fetched under the open filter, producing 3
// set chunks (0, 1000, 2000) and leaving the chunk at 3000 unset. Whether a
// stricter query can reuse this coverage is checked in repo_test.go and
// eventfetcher_test.go, not here.
func TestScenarioACoverageBasedSkip(t *testing.T) {
	openIndex := New(1000)
	require.NoError(t, openIndex.SetRange(0, 3000, true))

	require.True(t, openIndex.Get(0))
	require.True(t, openIndex.Get(1000))
	require.True(t, openIndex.Get(2000))
	require.False(t, openIndex.Get(3000))
}
