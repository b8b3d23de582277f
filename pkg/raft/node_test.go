package raft_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
	"github.com/vzdtic/movieticket-raft/pkg/rpc"
	"github.com/vzdtic/movieticket-raft/pkg/statemachine"
	"github.com/vzdtic/movieticket-raft/pkg/wal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoStateMachine records every applied command and echoes its payload, standing
// in for the booking state machine in tests that only care about Raft's
// replication behavior, not booking semantics.
type echoStateMachine struct {
	applied []raft.Command
}

func (e *echoStateMachine) Apply(cmd raft.Command) []byte {
	e.applied = append(e.applied, cmd)
	return cmd.Payload
}

type testNode struct {
	node *raft.Node
	sm   *echoStateMachine
}

func newTestCluster(t *testing.T, n int) ([]*testNode, *rpc.LocalTransport) {
	t.Helper()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}

	transport := rpc.NewLocalTransport()
	nodes := make([]*testNode, n)

	for i, id := range ids {
		peers := make([]string, 0, n-1)
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}

		cfg := raft.DefaultConfig(id, peers)
		w, err := wal.Open(t.TempDir())
		require.NoError(t, err)

		sm := &echoStateMachine{}
		node := raft.NewNode(cfg, transport, w, sm)
		transport.Register(id, node)

		nodes[i] = &testNode{node: node, sm: sm}
	}

	for _, tn := range nodes {
		require.NoError(t, tn.node.Start())
	}

	t.Cleanup(func() {
		for _, tn := range nodes {
			tn.node.Stop()
		}
	})

	return nodes, transport
}

func waitForLeader(t *testing.T, nodes []*testNode, timeout time.Duration) *testNode {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, tn := range nodes {
			if tn.node.IsLeader() {
				return tn
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no leader elected within timeout")
	return nil
}

func TestElectionSafety(t *testing.T) {
	nodes, _ := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)
	require.NotNil(t, leader)

	term, _ := leader.node.GetState()

	// At most one leader per term. Sample repeatedly over a window that
	// spans several heartbeat intervals.
	for i := 0; i < 20; i++ {
		leaders := 0
		for _, tn := range nodes {
			if tn.node.IsLeader() {
				t2, isLeader := tn.node.GetState()
				if isLeader && t2 == term {
					leaders++
				}
			}
		}
		require.LessOrEqual(t, leaders, 1)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProposeReplicatesToAllNodes(t *testing.T) {
	nodes, _ := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	cmd := raft.Command{Type: raft.CommandHoldSeats, Payload: []byte("seat-hold"), ClientID: "c1", RequestSeq: 1}
	result, err := leader.node.Propose(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, []byte("seat-hold"), result.Result)

	require.Eventually(t, func() bool {
		for _, tn := range nodes {
			if tn.node.GetLastApplied() < result.Index {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	for _, tn := range nodes {
		found := false
		for _, applied := range tn.sm.applied {
			if string(applied.Payload) == "seat-hold" {
				found = true
			}
		}
		require.True(t, found, "node %s never applied the command", tn.node.GetID())
	}
}

func TestFollowerRejectsProposeWithNotLeader(t *testing.T) {
	nodes, _ := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)

	var follower *testNode
	for _, tn := range nodes {
		if tn != leader {
			follower = tn
			break
		}
	}
	require.NotNil(t, follower)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := follower.node.Propose(ctx, raft.Command{Type: raft.CommandNoop})
	require.ErrorIs(t, err, raft.ErrNotLeader)
}

func TestLeaderFailover(t *testing.T) {
	nodes, transport := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)
	firstTerm, _ := leader.node.GetState()

	transport.Partition(leader.node.GetID())
	leader.node.Stop()

	var survivors []*testNode
	for _, tn := range nodes {
		if tn != leader {
			survivors = append(survivors, tn)
		}
	}

	newLeader := waitForLeader(t, survivors, 2*time.Second)
	newTerm, _ := newLeader.node.GetState()
	require.Greater(t, newTerm, firstTerm)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := newLeader.node.Propose(ctx, raft.Command{Type: raft.CommandCancelBooking, Payload: []byte("cancel"), ClientID: "c1", RequestSeq: 1})
	require.NoError(t, err)
}

func TestProposeReturnsShuttingDownAfterStop(t *testing.T) {
	nodes, transport := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)

	// Isolate the leader so its in-flight proposal can never replicate and
	// commit; it should only ever resolve via Stop(), not via the cluster
	// electing someone else and this node crash-looping forever.
	transport.Partition(leader.node.GetID())

	errCh := make(chan error, 1)
	go func() {
		_, err := leader.node.Propose(context.Background(), raft.Command{
			Type: raft.CommandHoldSeats, Payload: []byte("stuck"), ClientID: "c1", RequestSeq: 1,
		})
		errCh <- err
	}()

	// Give Propose a moment to register its waiter before stopping.
	time.Sleep(20 * time.Millisecond)
	leader.node.Stop()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, raft.ErrShuttingDown)
	case <-time.After(2 * time.Second):
		t.Fatal("Propose did not return after Stop()")
	}
}

func TestConflictingUncommittedEntryIsTruncatedAfterHeal(t *testing.T) {
	nodes, transport := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)
	firstTerm, _ := leader.node.GetState()

	baseCtx, baseCancel := context.WithTimeout(context.Background(), time.Second)
	base, err := leader.node.Propose(baseCtx, raft.Command{Type: raft.CommandHoldSeats, Payload: []byte("base"), ClientID: "c0", RequestSeq: 1})
	baseCancel()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, tn := range nodes {
			if tn.node.GetLastApplied() < base.Index {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	// Isolate the leader without stopping it: it keeps believing it's leader
	// and appends a new entry to its own log, but can never replicate it to
	// a majority, so the entry stays uncommitted.
	transport.Partition(leader.node.GetID())

	staleCtx, staleCancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	_, staleErr := leader.node.Propose(staleCtx, raft.Command{Type: raft.CommandHoldSeats, Payload: []byte("stale"), ClientID: "c1", RequestSeq: 1})
	staleCancel()
	require.Error(t, staleErr)

	staleLog := leader.node.GetLog()
	staleIndex := staleLog[len(staleLog)-1].Index
	require.Equal(t, base.Index+1, staleIndex)

	var survivors []*testNode
	for _, tn := range nodes {
		if tn != leader {
			survivors = append(survivors, tn)
		}
	}

	newLeader := waitForLeader(t, survivors, 2*time.Second)
	newTerm, _ := newLeader.node.GetState()
	require.Greater(t, newTerm, firstTerm)

	replaceCtx, replaceCancel := context.WithTimeout(context.Background(), time.Second)
	replaced, err := newLeader.node.Propose(replaceCtx, raft.Command{Type: raft.CommandHoldSeats, Payload: []byte("replacement"), ClientID: "c2", RequestSeq: 1})
	replaceCancel()
	require.NoError(t, err)
	require.Equal(t, staleIndex+1, replaced.Index, "the new leader's election no-op takes the index the old leader left uncommitted, so the replacement lands right after it")

	transport.Heal(leader.node.GetID())

	require.Eventually(t, func() bool {
		return leader.node.GetLastApplied() >= replaced.Index
	}, 2*time.Second, 10*time.Millisecond)

	foundReplacement := false
	for _, applied := range leader.sm.applied {
		require.NotEqual(t, "stale", string(applied.Payload), "the conflicting uncommitted entry must never be applied")
		if string(applied.Payload) == "replacement" {
			foundReplacement = true
		}
	}
	require.True(t, foundReplacement, "the formerly isolated leader must adopt the survivors' committed entries in place of its conflicting one")
}

func TestPartitionAndHeal(t *testing.T) {
	nodes, transport := newTestCluster(t, 3)
	leader := waitForLeader(t, nodes, 2*time.Second)

	var minority *testNode
	for _, tn := range nodes {
		if tn != leader {
			minority = tn
			break
		}
	}

	transport.Partition(minority.node.GetID())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := leader.node.Propose(ctx, raft.Command{Type: raft.CommandHoldSeats, Payload: []byte("a"), ClientID: "c1", RequestSeq: 1})
	require.NoError(t, err)

	transport.Heal(minority.node.GetID())

	require.Eventually(t, func() bool {
		return minority.node.GetLastApplied() >= result.Index
	}, 2*time.Second, 10*time.Millisecond)
}
