package wix

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDeterministic(t *testing.T) {
	t.Parallel()

	ids := NewIdentifiers(uuid.Nil)

	var tests = []struct {
		in  string
		out string
	}{
		{in: "numpy", out: "904FC199-3908-5A35-8DDA-E4717D64C735"},
		{in: "python", out: "0F57E060-26E9-5939-B547-3A3932DAC54C"},
		{in: "vs2015_runtime", out: "B8F9457B-93E6-53B6-8241-D225CE47E223"},
		{in: "Maxi1", out: "315866D5-52F5-582A-8C3B-25FDDE13D66A"},
		{in: "Miniconda34", out: "79E7A455-1447-5746-9BBE-8ACC9CB84B51"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.out, ids.Deterministic(tt.in), tt.in)
		require.Equal(t, ids.Deterministic(tt.in), ids.Deterministic(tt.in))
	}

	require.NotEqual(t, ids.Deterministic("numpy"), ids.Deterministic("numpy1"))
}

func TestDeterministicNamespace(t *testing.T) {
	t.Parallel()

	other := NewIdentifiers(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	require.NotEqual(t, NewIdentifiers(DefaultNamespace).Deterministic("numpy"), other.Deterministic("numpy"))
	require.Equal(t, NewIdentifiers(uuid.Nil).Deterministic("numpy"), NewIdentifiers(DefaultNamespace).Deterministic("numpy"))
}

func TestRandom(t *testing.T) {
	t.Parallel()

	ids := NewIdentifiers(uuid.Nil)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := ids.Random()
		require.False(t, seen[id], "duplicate random id %s", id)
		seen[id] = true

		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		require.Equal(t, uuid.Version(4), parsed.Version())
	}
}
