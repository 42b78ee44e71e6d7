package sample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testBank() *Bank {
	b := NewBank()
	b.Add("bd", &Sample{Name: "bd", Rate: 44100, Data: []float32{1, 0}})
	b.Add("bd", &Sample{Name: "bd", Rate: 44100, Data: []float32{0, 1}})
	b.Add("sn", &Sample{Name: "sn", Rate: 44100, Data: []float32{0.5}})
	return b
}

func TestResolveIndexWraps(t *testing.T) {
	b := testBank()
	for _, tt := range []struct {
		index int
		first float32
	}{
		{0, 1},
		{1, 0},
		{2, 1},  // wraps
		{-1, 0}, // negative wraps backwards
	} {
		s, err := b.Resolve("bd", tt.index)
		require.NoError(t, err)
		require.Equal(t, tt.first, s.Data[0], "index %d", tt.index)
	}
}

func TestResolveUnknown(t *testing.T) {
	b := testBank()
	_, err := b.Resolve("nope", 0)
	require.Error(t, err)
}

func TestResolveRef(t *testing.T) {
	b := testBank()
	s, err := b.ResolveRef("bd:1")
	require.NoError(t, err)
	require.Equal(t, float32(0), s.Data[0])

	s, err = b.ResolveRef("sn")
	require.NoError(t, err)
	require.Equal(t, float32(0.5), s.Data[0])

	_, err = b.ResolveRef("bd:x")
	require.Error(t, err)
}

func TestNamesSorted(t *testing.T) {
	b := testBank()
	require.Equal(t, []string{"bd", "sn"}, b.Names())
	require.Equal(t, 2, b.Count("bd"))
	require.Equal(t, 0, b.Count("nope"))
}
