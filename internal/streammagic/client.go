// Package streammagic implements the websocket control protocol client for
// StreamMagic network streamers. Requests and responses are JSON envelopes
// exchanged over a single connection; one request is in flight at a time.
package streammagic

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"rew2streammagic/internal/eq"
	"rew2streammagic/internal/logger"
)

const (
	smoipPath   = "/smoip"
	defaultPort = "80"

	// closeWait bounds the close handshake on disconnect; the session
	// context may already be expired by then.
	closeWait = 2 * time.Second
)

// Client talks to one device over one websocket connection.
type Client struct {
	host string
	log  *logger.Logger
	conn *websocket.Conn
}

// NewClient returns a client for the device at host. Host may be a hostname,
// an IPv4/IPv6 literal, or either with an explicit port; port 80 is assumed
// otherwise.
func NewClient(host string, log *logger.Logger) *Client {
	return &Client{host: host, log: log}
}

// Connect dials the device's control endpoint. The handshake is bounded by
// ctx; errors are normalized to the package sentinel errors.
func (c *Client) Connect(ctx context.Context) error {
	u := deviceURL(c.host)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return normalizeNetError(fmt.Errorf("dial %s: %w", u, err))
	}
	c.conn = conn
	c.log.Debugw("ws_connected", "url", u)
	return nil
}

// Info queries /system/info and returns the device identity.
func (c *Client) Info(ctx context.Context) (Info, error) {
	resp, err := c.roundTrip(ctx, request{Path: pathSystemInfo})
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(resp.Params.Data, &info); err != nil {
		return Info{}, fmt.Errorf("%w: decoding info: %v", ErrTransport, err)
	}
	return info, nil
}

// SetEqualizer submits the whole band list as one atomic request. The device
// either accepts all bands or rejects the request.
func (c *Client) SetEqualizer(ctx context.Context, userEQ eq.UserEQ) error {
	_, err := c.roundTrip(ctx, request{Path: pathUserEQ, Params: userEQ})
	return err
}

// Disconnect performs the close handshake and releases the connection. Safe
// to call when never connected.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil

	deadline := time.Now().Add(closeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := conn.WriteControl(websocket.CloseMessage, msg, deadline)
	closeErr := conn.Close()
	if writeErr != nil {
		return normalizeNetError(writeErr)
	}
	if closeErr != nil {
		return normalizeNetError(closeErr)
	}
	return nil
}

// roundTrip writes one request and reads frames until the response for its
// path arrives. Unsolicited frames for other paths are skipped. Deadlines
// come from ctx so the whole session shares one wall-clock budget.
func (c *Client) roundTrip(ctx context.Context, req request) (response, error) {
	if c.conn == nil {
		return response{}, fmt.Errorf("%w: not connected", ErrTransport)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(closeWait)
	}

	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		return response{}, normalizeNetError(fmt.Errorf("write %s: %w", req.Path, err))
	}

	_ = c.conn.SetReadDeadline(deadline)
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return response{}, normalizeNetError(fmt.Errorf("read %s: %w", req.Path, err))
		}
		if resp.Path != req.Path {
			c.log.Debugw("ws_frame_skipped", "path", resp.Path)
			continue
		}
		if resp.Result != resultOK {
			return response{}, fmt.Errorf("%w: %s (result %d): %s",
				ErrRejected, req.Path, resp.Result, resp.Message)
		}
		return resp, nil
	}
}

// deviceURL builds the ws:// endpoint for host, bracketing IPv6 literals and
// defaulting the port.
func deviceURL(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return "ws://" + host + smoipPath
	}
	if addr, err := netip.ParseAddr(host); err == nil && addr.Is6() {
		return "ws://" + net.JoinHostPort(host, defaultPort) + smoipPath
	}
	if strings.Contains(host, ":") {
		// Unbracketed IPv6 with zone or similar; JoinHostPort adds brackets.
		return "ws://" + net.JoinHostPort(host, defaultPort) + smoipPath
	}
	return "ws://" + host + ":" + defaultPort + smoipPath
}
