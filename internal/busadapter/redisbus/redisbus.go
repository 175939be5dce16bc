// Package redisbus is a reference session.BusClient backed by Redis pub/sub.
// The Session never imports this package directly (§1: the bus client is an
// out-of-scope external collaborator) — it exists so the gateway has one
// concrete, runnable way to reach a broker, grounded on the teacher's own
// preference for a single long-lived connection per role rather than a pool
// per message (src/sippy/udp_server.go dedicates one socket per listener).
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dialplan-gateway/ctrlsession/internal/session"
)

// Client publishes Control Session bus events as JSON on Redis channels
// named after the event's logical topic (§6): dialplan/route_win,
// dialplan/usurp_control, dialplan/error, call/event.
type Client struct {
	rdb *redis.Client
	log *logrus.Entry
}

func New(rdb *redis.Client, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{rdb: rdb, log: log}
}

func (c *Client) publish(ctx context.Context, channel string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}
	if err := c.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func (c *Client) PublishRouteWin(ctx context.Context, win session.RouteWin) error {
	return c.publish(ctx, "dialplan/route_win", map[string]interface{}{
		"Call-ID":            win.CallID,
		"Control-Queue":      win.ControlQueue,
		"Control-PID":        win.ControlPID,
		"Custom-Channel-Vars": win.CustomChannelVars,
	})
}

func (c *Client) PublishUsurpControl(ctx context.Context, notice session.UsurpNotice) error {
	return c.publish(ctx, "dialplan/usurp_control", map[string]interface{}{
		"Call-ID":    notice.CallID,
		"Reason":     notice.Reason,
		"Fetch-ID":   notice.FetchID,
		"Media-Node": notice.MediaNode,
	})
}

func (c *Client) PublishError(ctx context.Context, ev session.ErrorEvent) error {
	return c.publish(ctx, "dialplan/error", map[string]interface{}{
		"Call-ID": ev.CallID,
		"Msg-ID":  ev.MsgID,
		"Request": ev.Request.Raw,
		"Message": ev.Message,
	})
}

func (c *Client) PublishChannelExecuteError(ctx context.Context, ev session.ChannelExecuteErrorEvent) error {
	return c.publish(ctx, "call/event", map[string]interface{}{
		"Event-Name":       "CHANNEL_EXECUTE_ERROR",
		"Call-ID":          ev.CallID,
		"Application-Name": ev.ApplicationName,
		"Msg-ID":           ev.MsgID,
	})
}

// Subscribe relays dialplan/command and conference/command messages from
// Redis into handle, decoding each payload as a JSON object. It blocks until
// ctx is cancelled or the subscription's channel closes.
func Subscribe(ctx context.Context, rdb *redis.Client, log *logrus.Entry, handle func(map[string]interface{})) error {
	sub := rdb.Subscribe(ctx, "dialplan/command", "conference/command")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var raw map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &raw); err != nil {
				log.WithError(err).WithField("channel", msg.Channel).Warn("dropping undecodable bus message")
				continue
			}
			handle(raw)
		}
	}
}
