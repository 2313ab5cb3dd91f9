package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchange(t *testing.T, m *MockTransceiver, cmd string) string {
	t.Helper()
	require.NoError(t, m.ResetInputBuffer())
	_, err := m.Write([]byte(cmd))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := m.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestMockTransceiver(t *testing.T) {
	t.Run("Frequency", func(t *testing.T) {
		m := NewMockTransceiver()
		assert.Equal(t, "FA014074000;", exchange(t, m, "FA;"))
		assert.Equal(t, "", exchange(t, m, "FA021074000;"))
		assert.Equal(t, "FA021074000;", exchange(t, m, "FA;"))
		assert.Equal(t, "?;", exchange(t, m, "FA999999999;"))
	})

	t.Run("Mode Per Side", func(t *testing.T) {
		m := NewMockTransceiver()
		exchange(t, m, "MD1C;")
		assert.Equal(t, "MD02;", exchange(t, m, "MD0;"))
		assert.Equal(t, "MD1C;", exchange(t, m, "MD1;"))
		assert.Equal(t, "?;", exchange(t, m, "MD0G;"))
	})

	t.Run("AGC Auto Reads Back As Variant", func(t *testing.T) {
		m := NewMockTransceiver()
		exchange(t, m, "GT04;")
		assert.Equal(t, "GT05;", exchange(t, m, "GT0;"))
	})

	t.Run("Power Respects Device Range", func(t *testing.T) {
		m := NewMockTransceiver()
		assert.Equal(t, "PC1010;", exchange(t, m, "PC;"))
		assert.Equal(t, "?;", exchange(t, m, "PC1050;"))
		assert.Equal(t, "", exchange(t, m, "PC1005;"))
		assert.Equal(t, "PC1005;", exchange(t, m, "PC;"))

		m.SetPowerDevice('2', 50)
		assert.Equal(t, "PC2050;", exchange(t, m, "PC;"))
	})

	t.Run("Meters", func(t *testing.T) {
		m := NewMockTransceiver()
		m.SetMeter(6, 255)
		assert.Equal(t, "RM6255000;", exchange(t, m, "RM6;"))
		assert.Equal(t, "?;", exchange(t, m, "RM9;"))
	})

	t.Run("Notch", func(t *testing.T) {
		m := NewMockTransceiver()
		exchange(t, m, "BP00001;")
		exchange(t, m, "BP01150;")
		assert.Equal(t, "BP00001;", exchange(t, m, "BP00;"))
		assert.Equal(t, "BP01150;", exchange(t, m, "BP01;"))
		assert.Equal(t, "?;", exchange(t, m, "BP01321;"))
	})

	t.Run("Preamp Levels Depend On Band", func(t *testing.T) {
		m := NewMockTransceiver()
		assert.Equal(t, "", exchange(t, m, "PA02;"))
		assert.Equal(t, "?;", exchange(t, m, "PA12;"))
		assert.Equal(t, "PA02;", exchange(t, m, "PA0;"))
	})

	t.Run("Garble And Silent", func(t *testing.T) {
		m := NewMockTransceiver()
		m.SetGarble(true)
		assert.Equal(t, "#A014074000#;", exchange(t, m, "FA;"))

		m.SetGarble(false)
		m.SetSilent(true)
		assert.Equal(t, "", exchange(t, m, "FA;"))
	})

	t.Run("Closed Port", func(t *testing.T) {
		m := NewMockTransceiver()
		require.NoError(t, m.Close())
		_, err := m.Write([]byte("FA;"))
		assert.Error(t, err)

		m.Reopen()
		assert.Equal(t, "FA014074000;", exchange(t, m, "FA;"))
	})
}

func TestMockOpener(t *testing.T) {
	o := NewMockOpener()

	ports, err := o.Open()
	require.NoError(t, err)
	require.NoError(t, ports.PTT.SetRTS(true))
	assert.True(t, o.Line().RTS())
	assert.Equal(t, 1, o.Line().Toggles())

	require.NoError(t, ports.CAT.Close())
	require.NoError(t, ports.PTT.Close())
	assert.False(t, o.Line().RTS())

	ports, err = o.Open()
	require.NoError(t, err)
	_, err = ports.CAT.Write([]byte("FA;"))
	assert.NoError(t, err)
}
