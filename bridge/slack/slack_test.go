package slack

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

type fakeAPI struct {
	mu    sync.Mutex
	calls map[string][]string
}

func (f *fakeAPI) params(method, key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method+"."+key]
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	f.calls = make(map[string][]string)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		method := r.URL.Path[1:]

		f.mu.Lock()
		for k, v := range r.Form {
			f.calls[method+"."+k] = append(f.calls[method+"."+k], v...)
		}
		f.mu.Unlock()

		var resp interface{}

		switch method {
		case "auth.test":
			resp = map[string]interface{}{"ok": true, "user_id": "UME", "team_id": "T1", "team": "acme", "user": "me"}
		case "conversations.members":
			if r.Form.Get("cursor") == "" {
				resp = map[string]interface{}{"ok": true, "members": []string{"U1"}, "response_metadata": map[string]string{"next_cursor": "next"}}
			} else {
				resp = map[string]interface{}{"ok": true, "members": []string{"U2"}, "response_metadata": map[string]string{"next_cursor": ""}}
			}
		case "users.info":
			resp = map[string]interface{}{"ok": true, "users": []map[string]interface{}{
				{"id": "U1", "name": "alice", "real_name": "Alice", "is_owner": true, "is_admin": true, "profile": map[string]string{"image_192": "a.png"}},
				{"id": "U2", "name": "bob", "profile": map[string]string{"display_name": "bobby"}},
			}}
		case "conversations.kick":
			if r.Form.Get("user") == "U404" {
				resp = map[string]interface{}{"ok": false, "error": "user_not_found"}
			} else {
				resp = map[string]interface{}{"ok": true}
			}
		default:
			resp = map[string]interface{}{"ok": true}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
}

func newTestAdapter(t *testing.T) (*Slack, *fakeAPI) {
	fake := &fakeAPI{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	s := New(Config{Token: "xoxp-test", Channel: "c123", APIURL: srv.URL + "/"})
	t.Cleanup(s.Close)

	require.NoError(t, s.Connect(context.Background()))

	return s, fake
}

func TestConnect(t *testing.T) {
	s, _ := newTestAdapter(t)

	assert.Equal(t, "UME", s.UserID())
	assert.Equal(t, bridge.Server{ID: "C123", Name: "C123", Address: "T1"}, s.Server())
}

func TestListMembers(t *testing.T) {
	s, fake := newTestAdapter(t)

	members, err := s.ListMembers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, bridge.Member{UserID: "U1", Username: "alice", DisplayName: "Alice", Avatar: "a.png", RoleIDs: []string{"owner", "admin"}}, members[0])
	assert.Equal(t, "bobby", members[1].DisplayName)
	assert.Equal(t, []string{"C123", "C123"}, fake.params("conversations.members", "channel"))
}

func TestListMembersLimit(t *testing.T) {
	s, fake := newTestAdapter(t)

	_, err := s.ListMembers(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"U1"}, fake.params("users.info", "users"))
}

func TestKickAndBan(t *testing.T) {
	s, fake := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, s.KickMember(ctx, "U2", "spam"))
	assert.Equal(t, []string{"U2"}, fake.params("conversations.kick", "user"))

	assert.Error(t, s.KickMember(ctx, "U404", ""))
	assert.ErrorIs(t, s.BanMember(ctx, "U2", ""), bridge.ErrNotSupported)
}

func TestUpdatePresence(t *testing.T) {
	s, fake := newTestAdapter(t)

	s.UpdatePresence(bridge.StatusIdle, "out")

	require.Eventually(t, func() bool {
		return len(fake.params("users.profile.set", "profile")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"away"}, fake.params("users.setPresence", "presence"))
}

func TestPresenceValue(t *testing.T) {
	assert.Equal(t, "auto", presenceValue(bridge.StatusOnline))
	assert.Equal(t, "auto", presenceValue(bridge.StatusDND))
	assert.Equal(t, "away", presenceValue(bridge.StatusIdle))
	assert.Equal(t, "away", presenceValue(bridge.StatusOffline))
}
