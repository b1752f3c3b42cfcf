// Package mattermost binds a mattermost team to the client: the team is a
// server, team members are its members, and the user's status is the
// directory presence.
package mattermost

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/42wim/matterstate/bridge"
	prefixed "github.com/matterbridge/logrus-prefixed-formatter"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
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

	return ourlog.WithFields(logrus.Fields{"prefix": "bridge/mattermost"})
}

type Config struct {
	Server        string
	Team          string
	Token         string
	Insecure      bool
	SkipTLSVerify bool
	ClientCert    string
	ClientKey     string
	Debug         bool
	Trace         bool
}

type Mattermost struct {
	client *model.Client4
	cfg    Config
	kpr    *keypairReloader

	userID string
	teamID string

	presenceMu sync.Mutex
	presence   chan bridge.Presence
	done       chan struct{}
}

func serverURL(cfg Config) string {
	server := strings.TrimSuffix(cfg.Server, "/")
	if strings.Contains(server, "://") {
		return server
	}

	if cfg.Insecure {
		return "http://" + server
	}

	return "https://" + server
}

// New builds the adapter. Nothing is sent until Connect.
func New(cfg Config) (*Mattermost, error) {
	logger = newLogger(cfg.Debug, cfg.Trace)

	m := &Mattermost{
		client:   model.NewAPIv4Client(serverURL(cfg)),
		cfg:      cfg,
		presence: make(chan bridge.Presence, 1),
		done:     make(chan struct{}),
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify}, //nolint:gosec
	}

	if cfg.ClientCert != "" {
		kpr, err := newKeypairReloader(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, err
		}

		m.kpr = kpr
		transport.TLSClientConfig.GetClientCertificate = kpr.GetClientCertificateFunc()
	}

	m.client.HTTPClient = &http.Client{Transport: transport, Timeout: 30 * time.Second}
	m.client.SetToken(cfg.Token)

	go m.presenceLoop()

	return m, nil
}

// Connect validates the token and resolves the team. It is also the
// reconnect hook: a successful call means the server is reachable again.
func (m *Mattermost) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Infof("connecting to %s (team: %s)", m.cfg.Server, m.cfg.Team)

	me, _, err := m.client.GetMe("")
	if err != nil {
		return errors.Wrap(err, "mattermost login")
	}

	team, _, err := m.client.GetTeamByName(m.cfg.Team, "")
	if err != nil {
		return errors.Wrapf(err, "mattermost team %s", m.cfg.Team)
	}

	m.presenceMu.Lock()
	m.userID = me.Id
	m.teamID = team.Id
	m.presenceMu.Unlock()

	return nil
}

// UserID is the id of the logged in user, empty before Connect.
func (m *Mattermost) UserID() string {
	m.presenceMu.Lock()
	defer m.presenceMu.Unlock()

	return m.userID
}

// Server describes the team as a server, keyed by the team name so it is
// known before Connect. The team owner is unknown to the API, so AdminID
// stays empty.
func (m *Mattermost) Server() bridge.Server {
	return bridge.Server{
		ID:      m.cfg.Team,
		Name:    m.cfg.Team,
		Address: m.client.URL,
	}
}

func (m *Mattermost) ids() (userID, teamID string) {
	m.presenceMu.Lock()
	defer m.presenceMu.Unlock()

	return m.userID, m.teamID
}

func (m *Mattermost) ListMembers(ctx context.Context, limit int) ([]bridge.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, teamID := m.ids()

	users, _, err := m.client.GetUsersInTeam(teamID, 0, limit, "")
	if err != nil {
		return nil, errors.Wrap(err, "mattermost list members")
	}

	members := make([]bridge.Member, 0, len(users))
	for _, u := range users {
		members = append(members, m.member(u))
	}

	return members, nil
}

func (m *Mattermost) member(u *model.User) bridge.Member {
	return bridge.Member{
		UserID:      u.Id,
		Username:    u.Username,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Nickname:    u.Nickname,
		Avatar:      m.client.APIURL + "/users/" + u.Id + "/image",
		RoleIDs:     strings.Fields(u.Roles),
		JoinedAt:    time.UnixMilli(u.CreateAt),
	}
}

// KickMember removes userID from the team. Mattermost has no kick reason.
func (m *Mattermost) KickMember(ctx context.Context, userID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, teamID := m.ids()

	if _, err := m.client.RemoveTeamMember(teamID, userID); err != nil {
		return errors.Wrapf(err, "mattermost remove %s", userID)
	}

	logger.Debugf("removed %s from team %s (%s)", userID, teamID, reason)

	return nil
}

// BanMember is not available: mattermost teams have no ban list.
func (m *Mattermost) BanMember(ctx context.Context, userID, reason string) error {
	return bridge.ErrNotSupported
}

func statusValue(status bridge.Status) string {
	switch status {
	case bridge.StatusOnline:
		return "online"
	case bridge.StatusIdle:
		return "away"
	case bridge.StatusDND:
		return "dnd"
	}

	return "offline"
}

// UpdatePresence queues the status for sending. Only the newest pending
// update is kept.
func (m *Mattermost) UpdatePresence(status bridge.Status, customText string) {
	m.presenceMu.Lock()
	defer m.presenceMu.Unlock()

	select {
	case <-m.done:
		return
	default:
	}

	select {
	case <-m.presence:
	default:
	}

	m.presence <- bridge.Presence{UserID: m.userID, Status: status, CustomText: customText}
}

func (m *Mattermost) presenceLoop() {
	for {
		select {
		case <-m.done:
			return
		case p := <-m.presence:
			if err := m.sendPresence(p); err != nil {
				logger.Errorf("presence update failed: %s", err)
			}
		}
	}
}

func (m *Mattermost) sendPresence(p bridge.Presence) error {
	if p.UserID == "" {
		return errors.New("not connected")
	}

	_, _, err := m.client.UpdateUserStatus(p.UserID, &model.Status{
		UserId: p.UserID,
		Status: statusValue(p.Status),
		Manual: true,
	})
	if err != nil {
		return errors.Wrap(err, "mattermost set status")
	}

	if p.CustomText == "" {
		_, err = m.client.RemoveUserCustomStatus(p.UserID)
	} else {
		_, _, err = m.client.UpdateUserCustomStatus(p.UserID, &model.CustomStatus{Text: p.CustomText})
	}

	return errors.Wrap(err, "mattermost set custom status")
}

func (m *Mattermost) Close() {
	m.presenceMu.Lock()
	defer m.presenceMu.Unlock()

	select {
	case <-m.done:
		return
	default:
	}

	close(m.done)

	if m.kpr != nil {
		m.kpr.stop()
	}
}
