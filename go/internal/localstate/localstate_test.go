package localstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantNameRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	f := Open(path)

	name, err := f.ParticipantName("AB12")
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, f.SetParticipantName("AB12", "Ana"))
	require.NoError(t, f.SetParticipantName("CD34", "Ben"))
	require.NoError(t, f.SetParticipantName("AB12", "Ana B"))

	reopened := Open(path)
	name, err = reopened.ParticipantName("AB12")
	require.NoError(t, err)
	assert.Equal(t, "Ana B", name)

	name, err = reopened.ParticipantName("CD34")
	require.NoError(t, err)
	assert.Equal(t, "Ben", name)
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("participants: [unclosed"), 0o600))

	_, err := Open(path).ParticipantName("AB12")
	assert.Error(t, err)
}
