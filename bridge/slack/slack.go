// Package slack binds one slack conversation to the client as a server:
// its members are the server members, and the user's presence is the
// directory presence.
package slack

import (
	"context"
	"strings"
	"sync"

	"github.com/42wim/matterstate/bridge"
	prefixed "github.com/matterbridge/logrus-prefixed-formatter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

var logger = newLogger(false, false)

func newLogger(debug, trace bool) *logrus.Entry {
	ourlog := logrus.New()
	ourlog.SetFormatter(&prefixed.TextFormatter{
		PrefixPadding: 18,
		FullTimestamp: true,
	})

	if debug {
		ourlog.SetLevel(logrus.DebugLevel)
	}

	if trace {
		ourlog.SetLevel(logrus.TraceLevel)
	}

	return ourlog.WithFields(logrus.Fields{"prefix": "bridge/slack"})
}

type Config struct {
	Token   string
	Channel string
	Debug   bool
	Trace   bool
	// APIURL overrides the slack endpoint, mostly for tests.
	APIURL string
}

type Slack struct {
	sc      *slack.Client
	channel string

	mu       sync.Mutex
	userID   string
	teamID   string
	presence chan bridge.Presence
	done     chan struct{}
}

func New(cfg Config) *Slack {
	logger = newLogger(cfg.Debug, cfg.Trace)

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	s := &Slack{
		sc:       slack.New(cfg.Token, opts...),
		channel:  strings.ToUpper(cfg.Channel),
		presence: make(chan bridge.Presence, 1),
		done:     make(chan struct{}),
	}

	go s.presenceLoop()

	return s
}

// Connect checks the token. It doubles as the reconnect hook.
func (s *Slack) Connect(ctx context.Context) error {
	resp, err := s.sc.AuthTestContext(ctx)
	if err != nil {
		return errors.Wrap(err, "slack auth")
	}

	s.mu.Lock()
	s.userID = resp.UserID
	s.teamID = resp.TeamID
	s.mu.Unlock()

	logger.Infof("connected to %s as %s", resp.Team, resp.User)

	return nil
}

func (s *Slack) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userID
}

// Server describes the bound conversation.
func (s *Slack) Server() bridge.Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	return bridge.Server{
		ID:      s.channel,
		Name:    s.channel,
		Address: s.teamID,
	}
}

// ListMembers pages through the conversation members, then fetches their
// profiles in one call.
func (s *Slack) ListMembers(ctx context.Context, limit int) ([]bridge.Member, error) {
	var ids []string

	params := &slack.GetUsersInConversationParameters{
		ChannelID: s.channel,
		Limit:     limit,
	}

	for len(ids) < limit {
		page, cursor, err := s.sc.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, errors.Wrap(err, "slack conversation members")
		}

		ids = append(ids, page...)
		if cursor == "" {
			break
		}

		params.Cursor = cursor
	}

	if len(ids) > limit {
		ids = ids[:limit]
	}

	if len(ids) == 0 {
		return []bridge.Member{}, nil
	}

	users, err := s.sc.GetUsersInfoContext(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "slack users info")
	}

	members := make([]bridge.Member, 0, len(*users))
	for i := range *users {
		members = append(members, member(&(*users)[i]))
	}

	return members, nil
}

func member(u *slack.User) bridge.Member {
	var roles []string
	if u.IsOwner {
		roles = append(roles, "owner")
	}

	if u.IsAdmin {
		roles = append(roles, "admin")
	}

	display := u.Profile.DisplayName
	if display == "" {
		display = u.RealName
	}

	return bridge.Member{
		UserID:      u.ID,
		Username:    u.Name,
		DisplayName: display,
		Avatar:      u.Profile.Image192,
		RoleIDs:     roles,
	}
}

// KickMember removes userID from the conversation. Slack takes no reason.
func (s *Slack) KickMember(ctx context.Context, userID, reason string) error {
	if err := s.sc.KickUserFromConversationContext(ctx, s.channel, userID); err != nil {
		return errors.Wrapf(err, "slack kick %s", userID)
	}

	logger.Debugf("kicked %s from %s (%s)", userID, s.channel, reason)

	return nil
}

func (s *Slack) BanMember(ctx context.Context, userID, reason string) error {
	return bridge.ErrNotSupported
}

// presenceValue maps a status to the two states slack lets a user set.
// dnd has no presence equivalent and is sent as auto.
func presenceValue(status bridge.Status) string {
	switch status {
	case bridge.StatusIdle, bridge.StatusOffline:
		return "away"
	}

	return "auto"
}

func (s *Slack) UpdatePresence(status bridge.Status, customText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	select {
	case <-s.presence:
	default:
	}

	s.presence <- bridge.Presence{UserID: s.userID, Status: status, CustomText: customText}
}

func (s *Slack) presenceLoop() {
	for {
		select {
		case <-s.done:
			return
		case p := <-s.presence:
			if err := s.sendPresence(p); err != nil {
				logger.Errorf("presence update failed: %s", err)
			}
		}
	}
}

func (s *Slack) sendPresence(p bridge.Presence) error {
	ctx := context.Background()

	if err := s.sc.SetUserPresenceContext(ctx, presenceValue(p.Status)); err != nil {
		return errors.Wrap(err, "slack set presence")
	}

	err := s.sc.SetUserCustomStatusContext(ctx, p.CustomText, "", 0)

	return errors.Wrap(err, "slack set custom status")
}

func (s *Slack) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
