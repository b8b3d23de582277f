// Package rpc provides transport implementations for Raft's peer RPCs:
// LocalTransport for deterministic in-process tests, and (see pkg/grpc) a
// real network transport for cmd/server.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
)

// LocalTransport wires a fixed set of in-process *raft.Node values together
// without touching the network, plus hooks (Partition/Heal/Disconnect/
// Connect/SetLatency) to deterministically exercise Raft's fault-tolerance
// properties — leader failover, partition and heal — in tests.
type LocalTransport struct {
	mu       sync.RWMutex
	nodes    map[string]*raft.Node
	disabled map[string]map[string]bool // disabled[from][to] = true if the link is cut
	latency  time.Duration
}

func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		nodes:    make(map[string]*raft.Node),
		disabled: make(map[string]map[string]bool),
	}
}

// Register associates a node ID with the *raft.Node instance RequestVote and
// AppendEntries should be delivered to.
func (t *LocalTransport) Register(id string, node *raft.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[id] = node
	t.disabled[id] = make(map[string]bool)
}

// SetLatency applies an artificial delay to every RPC, used to test election
// timeout behavior under slow networks.
func (t *LocalTransport) SetLatency(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latency = d
}

// Disconnect cuts the one-directional link from -> to.
func (t *LocalTransport) Disconnect(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled[from] == nil {
		t.disabled[from] = make(map[string]bool)
	}
	t.disabled[from][to] = true
}

// Connect restores the one-directional link from -> to.
func (t *LocalTransport) Connect(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disabled[from] != nil {
		delete(t.disabled[from], to)
	}
}

// Partition isolates nodeID from every other registered node, in both
// directions.
func (t *LocalTransport) Partition(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range t.nodes {
		if id == nodeID {
			continue
		}
		if t.disabled[nodeID] == nil {
			t.disabled[nodeID] = make(map[string]bool)
		}
		if t.disabled[id] == nil {
			t.disabled[id] = make(map[string]bool)
		}
		t.disabled[nodeID][id] = true
		t.disabled[id][nodeID] = true
	}
}

// Heal restores every link to and from nodeID.
func (t *LocalTransport) Heal(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.disabled[nodeID] = make(map[string]bool)
	for id := range t.nodes {
		if t.disabled[id] != nil {
			delete(t.disabled[id], nodeID)
		}
	}
}

// HealAll restores every link in the cluster.
func (t *LocalTransport) HealAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = make(map[string]map[string]bool)
}

func (t *LocalTransport) isConnected(from, to string) bool {
	if t.disabled[from] == nil {
		return true
	}
	return !t.disabled[from][to]
}

func (t *LocalTransport) RequestVote(ctx context.Context, target string, args *raft.RequestVoteArgs) (*raft.RequestVoteReply, error) {
	t.mu.RLock()
	node, ok := t.nodes[target]
	connected := t.isConnected(args.CandidateID, target)
	latency := t.latency
	t.mu.RUnlock()

	if !ok || !connected {
		return nil, raft.ErrNodeNotFound
	}

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return node.HandleRequestVote(args), nil
}

func (t *LocalTransport) AppendEntries(ctx context.Context, target string, args *raft.AppendEntriesArgs) (*raft.AppendEntriesReply, error) {
	t.mu.RLock()
	node, ok := t.nodes[target]
	connected := t.isConnected(args.LeaderID, target)
	latency := t.latency
	t.mu.RUnlock()

	if !ok || !connected {
		return nil, raft.ErrNodeNotFound
	}

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return node.HandleAppendEntries(args), nil
}
