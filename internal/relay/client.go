package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"gopkg.in/op/go-logging.v1"

	"confy/internal/domain"
	"confy/internal/log"
	"confy/internal/worker"
)

// Session is the client's view of one session manager: the inbound entry
// points the relay link feeds.
type Session interface {
	OnEnvelope(env domain.Envelope)
	PeerAttached(initiator bool)
	PeerUnavailable(reason string)
	ConnectionClosed()
}

// IncomingFunc is invoked when a peer claims a tunnel to us and no session
// is bound for it. It returns the responder session to attach, or nil to
// refuse the conversation.
type IncomingFunc func(peer domain.PeerID) Session

// Client owns the websocket connection to the relay and multiplexes any
// number of per-peer sessions over it. Writes are serialized internally;
// the session cores never touch the connection.
type Client struct {
	worker.Worker

	log  *logging.Logger
	name domain.PeerID

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	sessions map[domain.PeerID]Session
	incoming IncomingFunc
}

// Dial connects to the relay at base (an http:// or https:// URL) and
// registers name. The scheme is mapped to ws/wss the same way the relay URL
// is probed over plain HTTP.
func Dial(logBackend *log.Backend, base string, name domain.PeerID) (*Client, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("invalid username %q", name)
	}
	u, err := wsURL(base, name)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("username %q already connected to relay", name)
		}
		return nil, fmt.Errorf("relay dial %s: %w", u, err)
	}
	c := &Client{
		log:      logBackend.GetLogger("relay/client"),
		name:     name,
		conn:     conn,
		sessions: make(map[domain.PeerID]Session),
	}
	c.Go(c.readLoop)
	return c, nil
}

// OnIncoming installs the handler for tunnels claimed by remote peers.
func (c *Client) OnIncoming(fn IncomingFunc) {
	c.mu.Lock()
	c.incoming = fn
	c.mu.Unlock()
}

// Bind routes frames for peer to the given session.
func (c *Client) Bind(peer domain.PeerID, s Session) {
	c.mu.Lock()
	c.sessions[peer] = s
	c.mu.Unlock()
}

// Unbind drops the routing entry for peer.
func (c *Client) Unbind(peer domain.PeerID) {
	c.mu.Lock()
	delete(c.sessions, peer)
	c.mu.Unlock()
}

// Transport returns the session core's view of the tunnel to peer.
func (c *Client) Transport(peer domain.PeerID) domain.Transport {
	return &tunnelTransport{c: c, peer: peer}
}

// Close tears down the relay connection. Every bound session observes
// ConnectionClosed through the read loop ending.
func (c *Client) Close() {
	_ = c.conn.Close()
	c.Halt()
}

func (c *Client) readLoop() {
	defer func() {
		_ = c.conn.Close()
		c.mu.Lock()
		sessions := make([]Session, 0, len(c.sessions))
		for _, s := range c.sessions {
			sessions = append(sessions, s)
		}
		c.sessions = make(map[domain.PeerID]Session)
		c.mu.Unlock()
		for _, s := range sessions {
			s.ConnectionClosed()
		}
	}()

	for {
		select {
		case <-c.HaltCh():
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warningf("relay connection lost: %v", err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warningf("malformed relay frame dropped: %v", err)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	s := c.sessions[f.Peer]
	incoming := c.incoming
	c.mu.Unlock()

	if f.Event == eventAttached && s == nil && !f.Initiator {
		// A remote peer claimed the tunnel first; let the application decide
		// whether to answer.
		if incoming == nil {
			c.log.Noticef("incoming session from %s refused: no handler", f.Peer)
			c.hangup(f.Peer)
			return
		}
		if s = incoming(f.Peer); s == nil {
			c.log.Noticef("incoming session from %s refused", f.Peer)
			c.hangup(f.Peer)
			return
		}
		c.Bind(f.Peer, s)
	}
	if s == nil {
		c.log.Debugf("frame for unbound peer %s dropped", f.Peer)
		return
	}

	switch {
	case f.Envelope != nil:
		s.OnEnvelope(*f.Envelope)
	case f.Event == eventAttached:
		s.PeerAttached(f.Initiator)
	case f.Event == eventUnavailable:
		s.PeerUnavailable(f.Reason)
	case f.Event == eventDetached:
		c.Unbind(f.Peer)
		s.ConnectionClosed()
	default:
		c.log.Debugf("unknown relay event %q dropped", f.Event)
	}
}

func (c *Client) send(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) hangup(peer domain.PeerID) {
	if err := c.send(frame{Event: eventHangup, Peer: peer}); err != nil {
		c.log.Debugf("hangup to %s failed: %v", peer, err)
	}
}

// tunnelTransport adapts the shared relay connection to the per-session
// transport contract.
type tunnelTransport struct {
	c    *Client
	peer domain.PeerID
}

func (t *tunnelTransport) Dial(peer domain.PeerID) error {
	return t.c.send(frame{Event: eventDial, Peer: peer})
}

func (t *tunnelTransport) SendEnvelope(env domain.Envelope) error {
	return t.c.send(frame{Peer: t.peer, Envelope: &env})
}

func (t *tunnelTransport) RequestClose() error {
	t.c.Unbind(t.peer)
	return t.c.send(frame{Event: eventHangup, Peer: t.peer})
}

var _ domain.Transport = (*tunnelTransport)(nil)

// CheckUsername reports whether name is currently registered on the relay.
// Used as a pre-flight before dialing.
func CheckUsername(base string, name domain.PeerID) (bool, error) {
	u, err := url.Parse(base)
	if err != nil {
		return false, err
	}
	u.Path = "/user/" + url.PathEscape(string(name))
	resp, err := http.Get(u.String())
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("relay check %s: %s", u, resp.Status)
}

// wsURL maps the http/https relay base URL to its websocket endpoint for
// name.
func wsURL(base string, name domain.PeerID) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("relay URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("relay URL %q: unsupported scheme", base)
	}
	u.Path = "/ws/" + url.PathEscape(string(name))
	return u.String(), nil
}
