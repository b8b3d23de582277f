// Package grpc implements raft.Transport over real network connections,
// using the gob codec and hand-written service description in pkg/rpcwire
// instead of protoc-generated stubs.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
	"github.com/vzdtic/movieticket-raft/pkg/rpcwire"
)

// Transport implements raft.Transport by dialing peers over gRPC, and serves
// incoming peer RPCs by delegating to the *raft.Node registered via SetNode.
type Transport struct {
	mu          sync.RWMutex
	localAddr   string
	node        *raft.Node
	server      *grpc.Server
	listener    net.Listener
	connections map[string]*grpc.ClientConn
	clients     map[string]*rpcwire.Client
	peerAddrs   map[string]string
}

type raftServer struct {
	transport *Transport
}

func (s *raftServer) HandleRequestVote(args *raft.RequestVoteArgs) *raft.RequestVoteReply {
	s.transport.mu.RLock()
	node := s.transport.node
	s.transport.mu.RUnlock()
	if node == nil {
		return &raft.RequestVoteReply{}
	}
	return node.HandleRequestVote(args)
}

func (s *raftServer) HandleAppendEntries(args *raft.AppendEntriesArgs) *raft.AppendEntriesReply {
	s.transport.mu.RLock()
	node := s.transport.node
	s.transport.mu.RUnlock()
	if node == nil {
		return &raft.AppendEntriesReply{}
	}
	return node.HandleAppendEntries(args)
}

// New builds a transport that will listen on addr and dial peerAddrs lazily.
func New(addr string, peerAddrs map[string]string) *Transport {
	return &Transport{
		localAddr:   addr,
		connections: make(map[string]*grpc.ClientConn),
		clients:     make(map[string]*rpcwire.Client),
		peerAddrs:   peerAddrs,
	}
}

func (t *Transport) SetNode(node *raft.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.node = node
}

// Start binds the listener and begins serving peer RPCs in the background.
func (t *Transport) Start() error {
	listener, err := net.Listen("tcp", t.localAddr)
	if err != nil {
		return fmt.Errorf("grpc transport: listen: %w", err)
	}
	t.listener = listener

	t.server = grpc.NewServer()
	t.server.RegisterService(&rpcwire.ServiceDesc, &raftServer{transport: t})

	go func() {
		if err := t.server.Serve(listener); err != nil {
			fmt.Printf("grpc transport: serve error: %v\n", err)
		}
	}()

	return nil
}

// Stop closes every outbound connection and the listener.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, conn := range t.connections {
		conn.Close()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	if t.listener != nil {
		t.listener.Close()
	}
}

func (t *Transport) getClient(target string) (*rpcwire.Client, error) {
	t.mu.RLock()
	if client, ok := t.clients[target]; ok {
		t.mu.RUnlock()
		return client, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	if client, ok := t.clients[target]; ok {
		return client, nil
	}

	addr, ok := t.peerAddrs[target]
	if !ok {
		return nil, fmt.Errorf("grpc transport: unknown peer %q", target)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc transport: dial %s: %w", addr, err)
	}

	client := rpcwire.NewClient(conn)
	t.connections[target] = conn
	t.clients[target] = client
	return client, nil
}

// RequestVote implements raft.Transport.
func (t *Transport) RequestVote(ctx context.Context, target string, args *raft.RequestVoteArgs) (*raft.RequestVoteReply, error) {
	client, err := t.getClient(target)
	if err != nil {
		return nil, err
	}
	return client.RequestVote(ctx, args)
}

// AppendEntries implements raft.Transport.
func (t *Transport) AppendEntries(ctx context.Context, target string, args *raft.AppendEntriesArgs) (*raft.AppendEntriesReply, error) {
	client, err := t.getClient(target)
	if err != nil {
		return nil, err
	}
	return client.AppendEntries(ctx, args)
}
