package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"gopkg.in/op/go-logging.v1"

	"confy/internal/domain"
	"confy/internal/log"
)

// Server is the blind relay. It enforces name uniqueness, allows at most one
// tunnel per unordered peer pair, and forwards envelope frames between the
// two ends of a tunnel without inspecting or storing them.
type Server struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	users   map[domain.PeerID]*relayConn
	tunnels map[domain.Tunnel]domain.PeerID // value: the side that dialed first
}

type relayConn struct {
	name    domain.PeerID
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (rc *relayConn) send(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()
	return rc.conn.WriteMessage(websocket.TextMessage, data)
}

// NewServer builds a relay server.
func NewServer(logBackend *log.Backend) *Server {
	return &Server{
		log: logBackend.GetLogger("relay/server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		users:   make(map[domain.PeerID]*relayConn),
		tunnels: make(map[domain.Tunnel]domain.PeerID),
	}
}

// Handler returns the HTTP surface: the websocket endpoint and the username
// presence probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", s.handleWS)
	mux.HandleFunc("/user/", s.handleUser)
	return mux
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	name := domain.PeerID(strings.TrimPrefix(r.URL.Path, "/user/"))
	s.mu.Lock()
	_, ok := s.users[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := domain.PeerID(strings.TrimPrefix(r.URL.Path, "/ws/"))
	if !name.Valid() {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, taken := s.users[name]; taken {
		s.mu.Unlock()
		http.Error(w, "username already connected", http.StatusConflict)
		return
	}
	// Reserve the name before the upgrade so two racing connects cannot both
	// claim it.
	s.users[name] = nil
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.mu.Lock()
		delete(s.users, name)
		s.mu.Unlock()
		s.log.Warningf("upgrade for %s failed: %v", name, err)
		return
	}

	rc := &relayConn{name: name, conn: conn}
	s.mu.Lock()
	s.users[name] = rc
	s.mu.Unlock()
	s.log.Infof("%s connected", name)

	s.readLoop(rc)
	s.disconnect(rc)
}

func (s *Server) readLoop(rc *relayConn) {
	for {
		_, data, err := rc.conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warningf("malformed frame from %s dropped", rc.name)
			continue
		}
		switch {
		case f.Event == eventDial:
			s.handleDial(rc, f.Peer)
		case f.Event == eventHangup:
			s.handleHangup(rc, f.Peer)
		case f.Envelope != nil:
			s.forward(rc, f)
		default:
			s.log.Debugf("unknown frame from %s dropped", rc.name)
		}
	}
}

// handleDial claims the tunnel rc -> peer. The relay guarantees at most one
// tunnel per unordered pair and refuses a second concurrent claim.
func (s *Server) handleDial(rc *relayConn, peer domain.PeerID) {
	t := domain.NewTunnel(rc.name, peer)

	s.mu.Lock()
	other, present := s.users[peer]
	_, busy := s.tunnels[t]
	if present && !busy {
		s.tunnels[t] = rc.name
	}
	s.mu.Unlock()

	switch {
	case !present || other == nil:
		s.sendOrLog(rc, frame{Event: eventUnavailable, Peer: peer, Reason: "peer not connected"})
	case busy:
		s.sendOrLog(rc, frame{Event: eventUnavailable, Peer: peer, Reason: "tunnel occupied"})
	default:
		s.log.Infof("tunnel %s established", t)
		// The dialer claimed the tunnel first and is the initiator.
		s.sendOrLog(rc, frame{Event: eventAttached, Peer: peer, Initiator: true})
		s.sendOrLog(other, frame{Event: eventAttached, Peer: rc.name, Initiator: false})
	}
}

func (s *Server) handleHangup(rc *relayConn, peer domain.PeerID) {
	t := domain.NewTunnel(rc.name, peer)

	s.mu.Lock()
	_, existed := s.tunnels[t]
	delete(s.tunnels, t)
	other := s.users[peer]
	s.mu.Unlock()

	if !existed {
		return
	}
	s.log.Infof("tunnel %s released by %s", t, rc.name)
	if other != nil {
		s.sendOrLog(other, frame{Event: eventDetached, Peer: rc.name})
	}
}

// forward relays one envelope frame to the other end of the tunnel. The
// payload is opaque to the relay and is not retained.
func (s *Server) forward(rc *relayConn, f frame) {
	t := domain.NewTunnel(rc.name, f.Peer)

	s.mu.Lock()
	_, established := s.tunnels[t]
	other := s.users[f.Peer]
	s.mu.Unlock()

	if !established || other == nil {
		s.log.Debugf("envelope from %s for dead tunnel %s dropped", rc.name, t)
		return
	}
	s.sendOrLog(other, frame{Peer: rc.name, Envelope: f.Envelope})
}

// disconnect tears down every tunnel the departing connection was part of
// and notifies the counterparts.
func (s *Server) disconnect(rc *relayConn) {
	_ = rc.conn.Close()

	s.mu.Lock()
	delete(s.users, rc.name)
	var peers []*relayConn
	for t := range s.tunnels {
		if t.A != rc.name && t.B != rc.name {
			continue
		}
		delete(s.tunnels, t)
		if other := s.users[t.Other(rc.name)]; other != nil {
			peers = append(peers, other)
		}
	}
	s.mu.Unlock()

	s.log.Infof("%s disconnected", rc.name)
	for _, other := range peers {
		s.sendOrLog(other, frame{Event: eventDetached, Peer: rc.name})
	}
}

func (s *Server) sendOrLog(rc *relayConn, f frame) {
	if err := rc.send(f); err != nil {
		s.log.Debugf("send to %s failed: %v", rc.name, err)
	}
}
