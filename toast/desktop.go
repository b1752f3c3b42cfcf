package toast

import (
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// Desktop sends OS notifications through beeep. beeep has no click
// callback, so the routing data of each notification is kept in an LRU
// under a generated id; the host resolves a click with Route.
type Desktop struct {
	icon   string
	notify func(title, message, icon string) error
	routes *lru.Cache

	mu   sync.Mutex
	last string
}

func NewDesktop(icon string) *Desktop {
	routes, _ := lru.New(100)

	return &Desktop{
		icon:   icon,
		notify: func(title, message, icon string) error { return beeep.Notify(title, message, icon) },
		routes: routes,
	}
}

func (d *Desktop) Notify(title, body string, data map[string]string) {
	id := uuid.New().String()
	d.routes.Add(id, data)

	d.mu.Lock()
	d.last = id
	d.mu.Unlock()

	if err := d.notify(title, body, d.icon); err != nil {
		logger.Errorf("desktop notification failed: %s", err)
	}
}

// Route returns the target recorded for notification id.
func (d *Desktop) Route(id string) (Target, bool) {
	v, ok := d.routes.Get(id)
	if !ok {
		return Target{}, false
	}

	data, ok := v.(map[string]string)
	if !ok {
		return Target{}, false
	}

	return TargetFromData(data)
}

// LastID is the id of the most recent notification, which is the one a
// tray click refers to.
func (d *Desktop) LastID() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.last
}
