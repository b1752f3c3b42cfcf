package toast

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesktopRoute(t *testing.T) {
	d := NewDesktop("icon.png")

	var titles []string
	d.notify = func(title, message, icon string) error {
		assert.Equal(t, "icon.png", icon)
		titles = append(titles, title)
		return nil
	}

	target := ChannelTarget("s1", "c1")
	d.Notify("bob", "hi", target.Data())

	require.Equal(t, []string{"bob"}, titles)

	id := d.LastID()
	require.NotEmpty(t, id)

	got, ok := d.Route(id)
	assert.True(t, ok)
	assert.Equal(t, target, got)

	_, ok = d.Route("unknown")
	assert.False(t, ok)
}

func TestDesktopNotifyErrorIsLogged(t *testing.T) {
	d := NewDesktop("")
	d.notify = func(title, message, icon string) error {
		return errors.New("no notification daemon")
	}

	d.Notify("bob", "hi", DMTarget("p1").Data())

	_, ok := d.Route(d.LastID())
	assert.True(t, ok)
}
