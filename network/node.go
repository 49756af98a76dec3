package network

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/multichain/dispatch"
)

var log = logrus.WithField("component", "network")

// DefaultMaxPeers is the default limit on simultaneous peer connections.
const DefaultMaxPeers = 50

// Node listens for incoming validator connections and routes every
// request it receives to a dispatch.Handler, replying over the same
// connection — the validator-to-validator transport (spec.md §6
// "consumed/exposed" boundary), adapted from the teacher's mempool/block
// gossip Node into a request/reply RPC node.
type Node struct {
	nodeID     string
	listenAddr string
	handler    *dispatch.Handler
	tlsConfig  *tls.Config // nil → plain TCP
	maxPeers   int

	mu    sync.RWMutex
	peers map[string]*Peer

	listener net.Listener
	stopCh   chan struct{}
}

// NewNode creates a Node that will listen on listenAddr and serve requests
// through handler. If tlsCfg is non-nil the listener and outgoing
// connections use TLS.
func NewNode(nodeID, listenAddr string, handler *dispatch.Handler, tlsCfg *tls.Config) *Node {
	return &Node{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		handler:    handler,
		tlsConfig:  tlsCfg,
		maxPeers:   DefaultMaxPeers,
		peers:      make(map[string]*Peer),
		stopCh:     make(chan struct{}),
	}
}

// Start begins accepting connections.
func (n *Node) Start() error {
	var ln net.Listener
	var err error
	if n.tlsConfig != nil {
		ln, err = tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	} else {
		ln, err = net.Listen("tcp", n.listenAddr)
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.listenAddr, err)
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts down the node.
func (n *Node) Stop() {
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.Close()
	}
}

// AddPeer dials addr, registers the connection under id and sends a hello
// carrying this node's ID; the remote end's readLoop does not act on the
// hello.
func (n *Node) AddPeer(id, addr string) (*Peer, error) {
	peer, err := Connect(id, addr, n.tlsConfig)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.peers[id] = peer
	n.mu.Unlock()
	go n.readLoop(peer)

	hello, err := json.Marshal(map[string]string{"node_id": n.nodeID})
	if err != nil {
		log.Printf("marshal hello: %v", err)
		return peer, nil
	}
	if err := peer.Send(Message{Type: MsgHello, Payload: hello}); err != nil {
		log.Printf("send hello to %s: %v", id, err)
	}
	return peer, nil
}

// Peer returns the connected peer registered under id, or nil if not
// found.
func (n *Node) Peer(id string) *Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers[id]
}

// Call sends req to the peer registered under id and waits for its reply,
// the client-side half of the request/reply protocol acceptLoop/readLoop
// serve.
func (n *Node) Call(id string, req dispatch.Request) (dispatch.Response, error) {
	peer := n.Peer(id)
	if peer == nil {
		return dispatch.Response{}, fmt.Errorf("network: no peer registered for %q", id)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return dispatch.Response{}, err
	}
	if err := peer.Send(Message{Type: MsgRequest, Payload: data}); err != nil {
		return dispatch.Response{}, err
	}
	msg, err := peer.Receive()
	if err != nil {
		return dispatch.Response{}, err
	}
	var resp dispatch.Response
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		return dispatch.Response{}, fmt.Errorf("network: decode reply: %w", err)
	}
	return resp, nil
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				log.Printf("accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		peerCount := len(n.peers)
		n.mu.RUnlock()
		if peerCount >= n.maxPeers {
			log.Printf("max peers (%d) reached, rejecting %s", n.maxPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}
		peer := NewPeer(conn.RemoteAddr().String(), conn.RemoteAddr().String(), conn)
		n.mu.Lock()
		n.peers[peer.ID] = peer
		n.mu.Unlock()
		go n.readLoop(peer)
	}
}

func (n *Node) readLoop(peer *Peer) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("readLoop panic from %s: %v", peer.ID, r)
		}
		peer.Close()
		n.mu.Lock()
		delete(n.peers, peer.ID)
		n.mu.Unlock()
	}()
	for {
		msg, err := peer.Receive()
		if err != nil {
			return
		}
		if msg.Type != MsgRequest {
			continue
		}
		n.handleRequest(peer, msg)
	}
}

func (n *Node) handleRequest(peer *Peer, msg Message) {
	var req dispatch.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		log.Printf("unmarshal request from %s: %v", peer.ID, err)
		return
	}
	resp := n.handler.Dispatch(req)
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("marshal response to %s: %v", peer.ID, err)
		return
	}
	if err := peer.Send(Message{Type: MsgReply, Payload: data}); err != nil {
		log.Printf("send response to %s: %v", peer.ID, err)
	}
}
