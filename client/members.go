package client

import (
	"context"

	"github.com/pkg/errors"
)

const DefaultMemberLimit = 1000

func (c *Client) rpc(serverID string) (connection, error) {
	conn, ok := c.connection(serverID)
	if !ok || conn.rpc == nil {
		return connection{}, ErrNotConnected
	}

	return conn, nil
}

// LoadMembers fetches up to limit members of serverID and replaces the
// scope with them. Results that arrive after the server was cleared are
// dropped.
func (c *Client) LoadMembers(ctx context.Context, serverID string, limit int) error {
	conn, err := c.rpc(serverID)
	if err != nil {
		return err
	}

	if limit <= 0 {
		limit = DefaultMemberLimit
	}

	members, err := conn.rpc.ListMembers(ctx, limit)
	if err != nil {
		return errors.Wrapf(err, "listing members of %s", serverID)
	}

	if _, ok := c.connection(serverID); !ok {
		logger.Debugf("dropping %d members of %s: server cleared meanwhile", len(members), serverID)
		return nil
	}

	c.Members.SetAll(serverID, members)
	logger.Debugf("loaded %d members of %s", len(members), serverID)

	return nil
}

// KickMember removes userID from serverID. The member is only dropped from
// the store once the server confirmed it.
func (c *Client) KickMember(ctx context.Context, serverID, userID, reason string) error {
	conn, err := c.rpc(serverID)
	if err != nil {
		return err
	}

	if err := conn.rpc.KickMember(ctx, userID, reason); err != nil {
		return errors.Wrapf(err, "kicking %s from %s", userID, serverID)
	}

	c.Members.Remove(serverID, userID)

	return nil
}

func (c *Client) BanMember(ctx context.Context, serverID, userID, reason string) error {
	conn, err := c.rpc(serverID)
	if err != nil {
		return err
	}

	if err := conn.rpc.BanMember(ctx, userID, reason); err != nil {
		return errors.Wrapf(err, "banning %s from %s", userID, serverID)
	}

	c.Members.Remove(serverID, userID)

	return nil
}
