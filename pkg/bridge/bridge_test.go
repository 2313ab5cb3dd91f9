package bridge_test

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dougsko/ftx1d/pkg/bridge"
	"github.com/dougsko/ftx1d/pkg/cat"
	"github.com/dougsko/ftx1d/pkg/hardware"
	"github.com/dougsko/ftx1d/pkg/radio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, s *bridge.Server) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *testClient) readLine(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (c *testClient) roundTrip(t *testing.T, line string) string {
	t.Helper()
	c.send(t, line)
	return c.readLine(t)
}

func newTestServer(t *testing.T, opts ...bridge.Option) (*bridge.Server, *hardware.MockTransceiver, *hardware.MockLine) {
	t.Helper()
	mock := hardware.NewMockTransceiver()
	line := hardware.NewMockLine()
	ch := cat.New(mock, line, cat.WithTimeout(30*time.Millisecond), cat.WithTurnaround(0))
	t.Cleanup(func() { ch.Close() })

	s, err := bridge.Listen("127.0.0.1:0", radio.New(ch), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mock, line
}

func TestBridgeSession(t *testing.T) {
	var writes int32
	s, mock, line := newTestServer(t, bridge.WithWriteNotifier(func() {
		atomic.AddInt32(&writes, 1)
	}))
	c := dial(t, s)

	assert.Equal(t, "RPRT 0", c.roundTrip(t, "F 14250000"))
	assert.Equal(t, 14250000, mock.Frequency())
	assert.Equal(t, "14250000", c.roundTrip(t, "f"))

	assert.Equal(t, "RPRT 0", c.roundTrip(t, "T 1"))
	assert.True(t, line.RTS())
	assert.Equal(t, "1", c.roundTrip(t, "t"))

	assert.Equal(t, "RPRT -1", c.roundTrip(t, "Z"))

	assert.Equal(t, int32(2), atomic.LoadInt32(&writes))
}

func TestBridgeMode(t *testing.T) {
	s, mock, _ := newTestServer(t)
	c := dial(t, s)

	assert.Equal(t, "USB", c.roundTrip(t, "m"))
	assert.Equal(t, "2400", c.readLine(t))

	assert.Equal(t, "RPRT 0", c.roundTrip(t, "M PKTUSB 3000"))
	assert.Contains(t, mock.Commands(), "MD0C;")

	assert.Equal(t, "DATA-U", c.roundTrip(t, "m"))
	assert.Equal(t, "2400", c.readLine(t))

	assert.Equal(t, "RPRT -1", c.roundTrip(t, "M WHISPER"))
}

func TestBridgeFailures(t *testing.T) {
	t.Run("Silent Radio", func(t *testing.T) {
		s, mock, _ := newTestServer(t)
		mock.SetSilent(true)
		c := dial(t, s)
		assert.Equal(t, "RPRT -1", c.roundTrip(t, "f"))
		assert.Equal(t, "RPRT -1", c.roundTrip(t, "m"))
	})

	t.Run("Bad Arguments", func(t *testing.T) {
		s, _, _ := newTestServer(t)
		c := dial(t, s)
		assert.Equal(t, "RPRT -1", c.roundTrip(t, "F"))
		assert.Equal(t, "RPRT -1", c.roundTrip(t, "F abc"))
		assert.Equal(t, "RPRT -1", c.roundTrip(t, "T 5"))
	})

	t.Run("No Notification On Failed Write", func(t *testing.T) {
		var writes int32
		s, _, _ := newTestServer(t, bridge.WithWriteNotifier(func() {
			atomic.AddInt32(&writes, 1)
		}))
		c := dial(t, s)
		assert.Equal(t, "RPRT -1", c.roundTrip(t, "M WHISPER"))
		assert.Equal(t, int32(0), atomic.LoadInt32(&writes))
	})
}

func TestBridgeCannedAnswers(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := dial(t, s)

	assert.Equal(t, "1", c.roundTrip(t, `\get_powerstat`))
	assert.Equal(t, "0", c.roundTrip(t, `\chk_vfo`))

	c.send(t, `\dump_state`)
	var lines []string
	for {
		l := c.readLine(t)
		lines = append(lines, l)
		if l == "done" {
			break
		}
	}
	assert.Equal(t, "0", c.readLine(t))
	assert.Equal(t, "1", lines[0])
	assert.Contains(t, lines, "rig_model=6")
}

func TestBridgeSkipsBlankLines(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := dial(t, s)

	c.send(t, "")
	c.send(t, "   ")
	assert.Equal(t, "14074000", c.roundTrip(t, "f"))
}

func TestBridgeQuit(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := dial(t, s)

	c.send(t, "q")
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.reader.ReadString('\n')
	assert.Error(t, err)
}

func TestBridgeClientTimeout(t *testing.T) {
	s, _, _ := newTestServer(t, bridge.WithClientTimeout(100*time.Millisecond))
	c := dial(t, s)

	time.Sleep(300 * time.Millisecond)
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.reader.ReadString('\n')
	assert.Error(t, err)
}

func TestBridgeConcurrentClients(t *testing.T) {
	var mu sync.Mutex
	peak := 0
	s, _, _ := newTestServer(t, bridge.WithConnectionObserver(func(open int) {
		mu.Lock()
		if open > peak {
			peak = open
		}
		mu.Unlock()
	}))

	clients := []*testClient{dial(t, s), dial(t, s), dial(t, s)}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *testClient) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				assert.Equal(t, "14074000", c.roundTrip(t, "f"))
			}
		}(c)
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 3, peak)
	mu.Unlock()
}

func TestBridgeCommandObserver(t *testing.T) {
	type result struct {
		name string
		ok   bool
	}
	var mu sync.Mutex
	var seen []result
	s, _, _ := newTestServer(t, bridge.WithCommandObserver(func(name string, ok bool) {
		mu.Lock()
		seen = append(seen, result{name, ok})
		mu.Unlock()
	}))
	c := dial(t, s)

	c.roundTrip(t, "f")
	c.roundTrip(t, "Z")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []result{{"f", true}, {"Z", false}}, seen)
}

func TestBridgeClose(t *testing.T) {
	s, _, _ := newTestServer(t)
	c := dial(t, s)
	assert.Equal(t, "14074000", c.roundTrip(t, "f"))

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("close did not return")
	}

	c.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := c.reader.ReadString('\n')
	assert.Error(t, err)

	_, err = net.DialTimeout("tcp", s.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}
