package state

import "github.com/42wim/matterstate/bridge"

// Presence tracks one presence record per user, process wide. A user without
// a record reads as offline.
type Presence struct {
	table *Table[bridge.Presence]
}

func NewPresence() *Presence {
	return &Presence{table: NewTable("presence", bridge.PresenceUserID)}
}

// Set overwrites the record of userID.
func (p *Presence) Set(userID string, status bridge.Status, customText string) {
	p.table.Add(bridge.Presence{UserID: userID, Status: status, CustomText: customText})
}

// BulkSet applies all entries as a single published transition.
func (p *Presence) BulkSet(entries []bridge.Presence) {
	if len(entries) == 0 {
		return
	}

	p.table.Apply(entries, nil)
	logger.Debugf("presence: ingested %d entries", len(entries))
}

func (p *Presence) Clear(userID string) bool {
	return p.table.Remove(userID)
}

// Reset drops every record, used on sign-out.
func (p *Presence) Reset() bool {
	return p.table.Clear()
}

func (p *Presence) Status(userID string) bridge.Status {
	rec, ok := p.table.Get(userID)
	if !ok || rec.Status == "" {
		return bridge.StatusOffline
	}

	return rec.Status
}

func (p *Presence) Get(userID string) (bridge.Presence, bool) {
	return p.table.Get(userID)
}

func (p *Presence) Snapshot() *Scope[bridge.Presence] {
	return p.table.Snapshot()
}

func (p *Presence) Subscribe(fn Observer[*Scope[bridge.Presence]]) func() {
	return p.table.Subscribe(fn)
}
