package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/42wim/matterstate/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu       sync.Mutex
	requests []string
	statuses []string
}

func (f *fakeServer) seen(req string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.requests {
		if r == req {
			return true
		}
	}

	return false
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		switch r.Method + " " + r.URL.Path {
		case "GET /api/v4/users/me":
			reply(w, map[string]interface{}{"id": "me", "username": "myself"})
		case "GET /api/v4/teams/name/ops":
			reply(w, map[string]interface{}{"id": "team1", "name": "ops"})
		case "GET /api/v4/users":
			assert.Equal(t, "team1", r.URL.Query().Get("in_team"))
			reply(w, []map[string]interface{}{
				{"id": "u1", "username": "alice", "first_name": "Alice", "last_name": "A", "roles": "system_user system_admin", "create_at": 1000},
				{"id": "u2", "username": "bob", "nickname": "bobby", "roles": "system_user"},
			})
		case "DELETE /api/v4/teams/team1/members/u2":
			reply(w, map[string]string{"status": "OK"})
		case "PUT /api/v4/users/me/status":
			var st map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&st)
			f.mu.Lock()
			f.statuses = append(f.statuses, st["status"].(string))
			f.mu.Unlock()
			reply(w, st)
		case "PUT /api/v4/users/me/status/custom", "DELETE /api/v4/users/me/status/custom":
			reply(w, map[string]string{"status": "OK"})
		default:
			w.WriteHeader(http.StatusNotFound)
			reply(w, map[string]interface{}{"id": "api.not_found", "message": "not found", "status_code": 404})
		}
	})

	return mux
}

func newTestAdapter(t *testing.T) (*Mattermost, *fakeServer) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	m, err := New(Config{Server: srv.URL, Team: "ops", Token: "token"})
	require.NoError(t, err)
	t.Cleanup(m.Close)

	require.NoError(t, m.Connect(context.Background()))

	return m, fake
}

func TestConnect(t *testing.T) {
	m, _ := newTestAdapter(t)

	assert.Equal(t, "me", m.UserID())
	assert.Equal(t, "ops", m.Server().ID)
}

func TestListMembers(t *testing.T) {
	m, _ := newTestAdapter(t)

	members, err := m.ListMembers(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "u1", members[0].UserID)
	assert.Equal(t, "Alice A", members[0].DisplayName)
	assert.Equal(t, []string{"system_user", "system_admin"}, members[0].RoleIDs)
	assert.Equal(t, time.UnixMilli(1000), members[0].JoinedAt)
	assert.Contains(t, members[0].Avatar, "/api/v4/users/u1/image")
	assert.Equal(t, "bobby", members[1].Nickname)
}

func TestKickAndBan(t *testing.T) {
	m, fake := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, m.KickMember(ctx, "u2", "spam"))
	assert.True(t, fake.seen("DELETE /api/v4/teams/team1/members/u2"))

	assert.Error(t, m.KickMember(ctx, "u9", ""))
	assert.ErrorIs(t, m.BanMember(ctx, "u2", ""), bridge.ErrNotSupported)
}

func TestUpdatePresence(t *testing.T) {
	m, fake := newTestAdapter(t)

	m.UpdatePresence(bridge.StatusIdle, "")

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.statuses) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "away", fake.statuses[0])
	require.Eventually(t, func() bool {
		return fake.seen("DELETE /api/v4/users/me/status/custom")
	}, time.Second, 10*time.Millisecond)
}

func TestStatusValue(t *testing.T) {
	assert.Equal(t, "online", statusValue(bridge.StatusOnline))
	assert.Equal(t, "away", statusValue(bridge.StatusIdle))
	assert.Equal(t, "dnd", statusValue(bridge.StatusDND))
	assert.Equal(t, "offline", statusValue(bridge.StatusOffline))
}

func TestServerURL(t *testing.T) {
	assert.Equal(t, "https://chat.example.com", serverURL(Config{Server: "chat.example.com/"}))
	assert.Equal(t, "http://chat.example.com", serverURL(Config{Server: "chat.example.com", Insecure: true}))
	assert.Equal(t, "http://127.0.0.1:8065", serverURL(Config{Server: "http://127.0.0.1:8065"}))
}
