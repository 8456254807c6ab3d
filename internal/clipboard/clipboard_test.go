package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSystem(m *Manager) *string {
	var sys string
	m.system = true
	m.readAll = func() (string, error) { return sys, nil }
	m.writeAll = func(s string) error { sys = s; return nil }
	return &sys
}

func TestInternalOnly(t *testing.T) {
	m := NewManager(false)
	assert.False(t, m.System())

	_, err := m.Read()
	assert.ErrorIs(t, err, ErrEmpty)

	m.Write("kept")
	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "kept", got)
}

func TestSystemPreferred(t *testing.T) {
	m := NewManager(false)
	sys := fakeSystem(m)

	m.Write("first")
	assert.Equal(t, "first", *sys)

	*sys = "from another program"
	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "from another program", got)
}

func TestSystemFailureFallsBack(t *testing.T) {
	m := NewManager(false)
	m.system = true
	m.writeAll = func(string) error { return errors.New("no display") }
	m.readAll = func() (string, error) { return "", errors.New("no display") }

	m.Write("fallback")
	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}

func TestEmptySystemUsesInternal(t *testing.T) {
	m := NewManager(false)
	sys := fakeSystem(m)
	m.Write("mine")
	*sys = ""

	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "mine", got)
}
