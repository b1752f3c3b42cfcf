package state

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingExpires(t *testing.T) {
	clk := clock.NewMock()
	ty := NewTyping(clk, 5*time.Second)

	ty.Start("s1", "c1", "u1")
	ty.Start("s1", "c1", "u2")
	assert.Equal(t, []string{"u1", "u2"}, ty.Typers("s1", "c1"))

	clk.Add(3 * time.Second)
	// refresh u1
	ty.Start("s1", "c1", "u1")

	clk.Add(3 * time.Second)
	require.Eventually(t, func() bool {
		return len(ty.Typers("s1", "c1")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u1"}, ty.Typers("s1", "c1"))

	clk.Add(3 * time.Second)
	require.Eventually(t, func() bool {
		return len(ty.Typers("s1", "c1")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTypingStopAndClear(t *testing.T) {
	clk := clock.NewMock()
	ty := NewTyping(clk, 0)

	ty.Start("s1", "c1", "u1")
	assert.True(t, ty.Stop("s1", "c1", "u1"))
	assert.False(t, ty.Stop("s1", "c1", "u1"))

	ty.Start("s1", "c1", "u1")
	ty.Start("s1", "c2", "u1")
	assert.True(t, ty.ClearChannel("s1", "c1"))
	assert.Empty(t, ty.Typers("s1", "c1"))
	assert.Equal(t, []string{"u1"}, ty.Typers("s1", "c2"))

	// a cleared entry stays gone after its old expiry
	ty.Start("s1", "c1", "u9")
	clk.Add(DefaultTypingTTL)
	require.Eventually(t, func() bool {
		return len(ty.Typers("s1", "c1")) == 0 && len(ty.Typers("s1", "c2")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestTypingServersWithSlashes(t *testing.T) {
	tests := []struct {
		name              string
		server, channel   string
		other, otherChann string
	}{
		{"slash in server id", "a/b", "c", "a", "b/c"},
		{"slash in channel id", "a", "b/c", "a/b", "c"},
		{"quote in ids", `a"`, "c", "a", `"c`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ty := NewTyping(clock.NewMock(), 0)

			ty.Start(tc.server, tc.channel, "u1")
			ty.Start(tc.other, tc.otherChann, "u2")

			assert.Equal(t, []string{"u1"}, ty.Typers(tc.server, tc.channel))
			assert.Equal(t, []string{"u2"}, ty.Typers(tc.other, tc.otherChann))

			assert.True(t, ty.ClearServer(tc.server))
			assert.Empty(t, ty.Typers(tc.server, tc.channel))
			assert.Equal(t, []string{"u2"}, ty.Typers(tc.other, tc.otherChann))
		})
	}
}

func TestTypingClearServer(t *testing.T) {
	clk := clock.NewMock()
	ty := NewTyping(clk, 0)

	ty.Start("s1", "c1", "u1")
	ty.Start("s1", "c2", "u2")
	ty.Start("s2", "c1", "u3")

	var published int
	ty.Subscribe(func(_, _ *Snapshot[Typer]) { published++ })

	assert.True(t, ty.ClearServer("s1"))
	assert.False(t, ty.ClearServer("s1"))
	assert.Equal(t, 2, published)
	assert.Empty(t, ty.Typers("s1", "c1"))
	assert.Empty(t, ty.Typers("s1", "c2"))

	// the other server still expires on schedule
	clk.Add(DefaultTypingTTL)
	require.Eventually(t, func() bool {
		return len(ty.Typers("s2", "c1")) == 0
	}, time.Second, 10*time.Millisecond)
}
