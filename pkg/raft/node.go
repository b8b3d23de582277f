package raft

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// WALInterface is the durability boundary Node depends on. It knows nothing
// about Raft semantics, just opaque state.
type WALInterface interface {
	Save(state *PersistentState) error
	Load() (*PersistentState, error)
	Close() error
	Size() (int64, error)
}

// StateMachineInterface is the deterministic booking domain Node drives
// through its apply loop. Apply must be pure given (state, cmd) — no local
// clock, no randomness.
type StateMachineInterface interface {
	Apply(cmd Command) []byte
}

// Node is a single Raft participant: role machine, log, and the leader-side
// bookkeeping (nextIndex/matchIndex, pending proposals) needed to turn
// client commands into committed, applied state.
type Node struct {
	mu sync.RWMutex

	id     string
	config NodeConfig
	peers  []string // does not include id

	// Persistent state (persist() before any dependent reply)
	currentTerm uint64
	votedFor    string
	rlog        *Log

	// persistedIndex is the highest log index known to have survived a
	// wal.Save() call. commitIndex is never advanced past it, so a lock-free
	// (and therefore possibly still in-flight) persist can never let an
	// unpersisted entry be committed, applied, or replied to.
	persistedIndex uint64

	// Volatile state
	state       NodeState
	commitIndex uint64
	lastApplied uint64

	// Leader-only state, reset on every becomeLeader
	nextIndex  map[string]uint64
	matchIndex map[string]uint64

	leaderID string

	stopCh          chan struct{}
	stopOnce        sync.Once
	electionResetCh chan struct{}

	pendingProposals map[uint64]*pendingProposal

	transport    Transport
	wal          WALInterface
	stateMachine StateMachineInterface

	electionMu       sync.Mutex
	electionDeadline time.Time
}

// NewNode wires a node's dependencies without starting any goroutines; call
// Start to begin participating in the cluster.
func NewNode(config NodeConfig, transport Transport, wal WALInterface, stateMachine StateMachineInterface) *Node {
	n := &Node{
		id:               config.NodeID,
		config:           config,
		peers:            config.Peers,
		rlog:             newLog(),
		state:            Follower,
		nextIndex:        make(map[string]uint64),
		matchIndex:       make(map[string]uint64),
		stopCh:           make(chan struct{}),
		electionResetCh:  make(chan struct{}, 1),
		pendingProposals: make(map[uint64]*pendingProposal),
		transport:        transport,
		wal:              wal,
		stateMachine:     stateMachine,
		electionDeadline: time.Now().Add(config.ElectionTimeoutMax),
	}
	return n
}

// Start restores any persisted state and begins the role-machine and apply
// goroutines, each supervised so a panic logs and restarts the worker instead
// of taking the whole node down.
func (n *Node) Start() error {
	if err := n.restore(); err != nil {
		log.Printf("raft[%s]: failed to restore state: %v", n.id, err)
	}
	go n.superviseWorker("run", n.run)
	go n.superviseWorker("applyLoop", n.applyLoop)
	return nil
}

// Stop halts both goroutines, fails any proposal still waiting on a result,
// and releases the WAL handle. Safe to call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
		n.drainPendingProposals(ErrShuttingDown)
		if n.wal != nil {
			n.wal.Close()
		}
	})
}

func (n *Node) drainPendingProposals(cause error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for idx, pending := range n.pendingProposals {
		select {
		case pending.resultCh <- CommitResult{Index: idx, Err: cause}:
		default:
		}
	}
	n.pendingProposals = make(map[uint64]*pendingProposal)
}

// superviseWorker runs fn in a loop, recovering and restarting it if it
// panics. Every locked section fn (transitively) enters releases n.mu via
// defer, except persist(), whose explicit Lock/Unlock wraps only a comparison
// and an assignment, so a panic unwinding out of fn never leaves the
// node-state mutex held across the restart.
func (n *Node) superviseWorker(name string, fn func()) {
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		n.runSupervised(name, fn)

		select {
		case <-n.stopCh:
			return
		default:
		}
	}
}

func (n *Node) runSupervised(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("raft[%s]: worker %q panicked, restarting: %v", n.id, name, r)
		}
	}()
	fn()
}

func (n *Node) run() {
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		switch n.currentState() {
		case Follower:
			n.runFollower()
		case Candidate:
			n.runCandidate()
		case Leader:
			n.runLeader()
		}
	}
}

func (n *Node) currentState() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Node) runFollower() {
	n.resetElectionDeadline()

	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		n.electionMu.Lock()
		deadline := n.electionDeadline
		n.electionMu.Unlock()

		timeout := time.Until(deadline)
		if timeout <= 0 {
			n.maybeBecomeCandidate()
			return
		}

		select {
		case <-n.stopCh:
			return
		case <-n.electionResetCh:
			n.resetElectionDeadline()
		case <-time.After(timeout):
			n.maybeBecomeCandidate()
			return
		}
	}
}

func (n *Node) maybeBecomeCandidate() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Follower {
		n.becomeCandidate()
	}
}

func (n *Node) runCandidate() {
	currentTerm, lastLogIndex, lastLogTerm, snap := n.startElection()
	n.persist(snap)

	log.Printf("raft[%s]: starting election for term %d", n.id, currentTerm)

	votesReceived := int32(1)
	votesNeeded := int32((len(n.peers)+1)/2 + 1)

	if votesReceived >= votesNeeded {
		if snap := n.becomeLeaderIfStillCandidate(currentTerm); snap != nil {
			n.persist(snap)
		}
		return
	}

	var wg sync.WaitGroup
	for _, peer := range n.peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()

			args := &RequestVoteArgs{
				Term:         currentTerm,
				CandidateID:  n.id,
				LastLogIndex: lastLogIndex,
				LastLogTerm:  lastLogTerm,
			}

			ctx, cancel := context.WithTimeout(context.Background(), n.config.RPCDeadline)
			defer cancel()

			reply, err := n.transport.RequestVote(ctx, peer, args)
			if err != nil {
				return
			}

			if snap := n.handleVoteReply(reply, currentTerm, &votesReceived, votesNeeded); snap != nil {
				n.persist(snap)
			}
		}(peer)
	}

	timeout := n.randomElectionTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.stopCh:
		return
	case <-timer.C:
		// election timed out with no majority; run() loop re-enters
		// runCandidate and a fresh term is started.
	case <-n.electionResetCh:
		// a valid AppendEntries from a new term's leader arrived;
		// becomeFollowerLocked already ran inside the RPC handler.
	}
}

func (n *Node) startElection() (currentTerm, lastLogIndex, lastLogTerm uint64, snap *PersistentState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currentTerm++
	n.votedFor = n.id
	return n.currentTerm, n.rlog.lastIndex(), n.rlog.lastTerm(), n.snapshotLocked()
}

func (n *Node) becomeLeaderIfStillCandidate(currentTerm uint64) *PersistentState {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Candidate && n.currentTerm == currentTerm {
		return n.becomeLeaderLocked()
	}
	return nil
}

func (n *Node) handleVoteReply(reply *RequestVoteReply, currentTerm uint64, votesReceived *int32, votesNeeded int32) *PersistentState {
	n.mu.Lock()
	defer n.mu.Unlock()

	if reply.Term > n.currentTerm {
		return n.becomeFollowerLocked(reply.Term)
	}
	if n.state != Candidate || n.currentTerm != currentTerm {
		return nil
	}
	if reply.VoteGranted {
		votes := atomic.AddInt32(votesReceived, 1)
		if votes >= votesNeeded && n.state == Candidate {
			return n.becomeLeaderLocked()
		}
	}
	return nil
}

func (n *Node) runLeader() {
	n.sendHeartbeats()

	ticker := time.NewTicker(n.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			if !n.IsLeader() {
				return
			}
			n.sendHeartbeats()
			n.advanceCommitIndex()
		case <-n.electionResetCh:
			// an incoming AppendEntries or granted vote reset the election
			// timer; if it carried a higher term, becomeFollowerLocked already
			// ran in the handler and the next tick returns to run().
		}
	}
}

func (n *Node) resetElectionDeadline() {
	n.electionMu.Lock()
	defer n.electionMu.Unlock()
	n.electionDeadline = time.Now().Add(n.randomElectionTimeout())
}

func (n *Node) sendHeartbeats() {
	currentTerm, leaderCommit, ok := n.leaderSnapshot()
	if !ok {
		return
	}
	for _, peer := range n.peers {
		go n.replicateTo(peer, currentTerm, leaderCommit)
	}
}

func (n *Node) leaderSnapshot() (term uint64, leaderCommit uint64, isLeader bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state != Leader {
		return 0, 0, false
	}
	return n.currentTerm, n.commitIndex, true
}

// replicateTo sends whatever entries peer is missing (or a bare heartbeat)
// and reconciles nextIndex/matchIndex from the reply.
func (n *Node) replicateTo(peer string, term uint64, leaderCommit uint64) {
	nextIdx, prevLogIndex, prevLogTerm, entries, ok := n.replicationSnapshot(peer, term)
	if !ok {
		return
	}

	args := &AppendEntriesArgs{
		Term:         term,
		LeaderID:     n.id,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.config.RPCDeadline)
	defer cancel()

	reply, err := n.transport.AppendEntries(ctx, peer, args)
	if err != nil {
		return
	}

	if snap := n.handleAppendReply(peer, term, nextIdx, len(entries), reply); snap != nil {
		n.persist(snap)
	}
}

func (n *Node) replicationSnapshot(peer string, term uint64) (nextIdx, prevLogIndex, prevLogTerm uint64, entries []LogEntry, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.state != Leader || n.currentTerm != term {
		return 0, 0, 0, nil, false
	}

	nextIdx = n.nextIndex[peer]
	if nextIdx == 0 {
		nextIdx = n.rlog.lastIndex() + 1
	}

	prevLogIndex = nextIdx - 1
	prevLogTerm, _ = n.rlog.termAt(prevLogIndex)
	entries = n.rlog.tail(nextIdx)
	return nextIdx, prevLogIndex, prevLogTerm, entries, true
}

func (n *Node) handleAppendReply(peer string, term, nextIdx uint64, numEntries int, reply *AppendEntriesReply) *PersistentState {
	n.mu.Lock()
	defer n.mu.Unlock()

	if reply.Term > n.currentTerm {
		return n.becomeFollowerLocked(reply.Term)
	}
	if n.state != Leader || n.currentTerm != term {
		return nil
	}

	if reply.Success {
		newNextIndex := nextIdx + uint64(numEntries)
		if newNextIndex > n.nextIndex[peer] {
			n.nextIndex[peer] = newNextIndex
		}
		newMatchIndex := newNextIndex - 1
		if newMatchIndex > n.matchIndex[peer] {
			n.matchIndex[peer] = newMatchIndex
		}
		n.tryAdvanceCommitIndexLocked()
		return nil
	}

	if reply.ConflictTerm > 0 {
		lastIndexOfTerm := uint64(0)
		for _, e := range n.rlog.snapshot() {
			if e.Term == reply.ConflictTerm {
				lastIndexOfTerm = e.Index
			}
		}
		if lastIndexOfTerm > 0 {
			n.nextIndex[peer] = lastIndexOfTerm + 1
		} else {
			n.nextIndex[peer] = reply.ConflictIndex
		}
	} else if reply.ConflictIndex > 0 {
		n.nextIndex[peer] = reply.ConflictIndex
	} else if n.nextIndex[peer] > 1 {
		n.nextIndex[peer]--
	}
	return nil
}

// tryAdvanceCommitIndexLocked must be called with n.mu held. The new
// commitIndex is capped at persistedIndex: a majority-matched index that
// hasn't finished its wal.Save() yet is not eligible to be committed.
func (n *Node) tryAdvanceCommitIndexLocked() {
	if n.state != Leader {
		return
	}

	matchIndices := make([]uint64, 0, len(n.peers)+1)
	matchIndices = append(matchIndices, n.rlog.lastIndex())
	for _, peer := range n.peers {
		matchIndices = append(matchIndices, n.matchIndex[peer])
	}
	sort.Slice(matchIndices, func(i, j int) bool { return matchIndices[i] > matchIndices[j] })

	majorityPos := len(matchIndices) / 2
	newCommitIndex := matchIndices[majorityPos]
	if newCommitIndex > n.persistedIndex {
		newCommitIndex = n.persistedIndex
	}
	if newCommitIndex <= n.commitIndex {
		return
	}

	// Leader Completeness: only commit by counting, never commit an entry
	// from a prior term directly (§5.4.2 of the Raft paper).
	term, ok := n.rlog.termAt(newCommitIndex)
	if !ok || term != n.currentTerm {
		return
	}

	oldCommit := n.commitIndex
	n.commitIndex = newCommitIndex
	log.Printf("raft[%s]: commitIndex advanced %d -> %d", n.id, oldCommit, newCommitIndex)
}

func (n *Node) advanceCommitIndex() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tryAdvanceCommitIndexLocked()
}

// HandleRequestVote implements the RequestVote RPC handler.
func (n *Node) HandleRequestVote(args *RequestVoteArgs) *RequestVoteReply {
	reply, snap := n.handleRequestVote(args)
	if snap != nil {
		n.persist(snap)
	}
	return reply
}

func (n *Node) handleRequestVote(args *RequestVoteArgs) (*RequestVoteReply, *PersistentState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	reply := &RequestVoteReply{Term: n.currentTerm}
	var snap *PersistentState

	if args.Term < n.currentTerm {
		return reply, nil
	}
	if args.Term > n.currentTerm {
		snap = n.becomeFollowerLocked(args.Term)
	}
	reply.Term = n.currentTerm

	if (n.votedFor == "" || n.votedFor == args.CandidateID) && n.isLogUpToDateLocked(args.LastLogIndex, args.LastLogTerm) {
		n.votedFor = args.CandidateID
		reply.VoteGranted = true
		snap = n.snapshotLocked()
		n.resetElectionTimerLocked()
		log.Printf("raft[%s]: granted vote to %s for term %d", n.id, args.CandidateID, args.Term)
	}

	return reply, snap
}

// HandleAppendEntries implements the AppendEntries RPC handler, including the
// conflict-index/conflict-term backtracking optimization.
func (n *Node) HandleAppendEntries(args *AppendEntriesArgs) *AppendEntriesReply {
	reply, snap := n.handleAppendEntries(args)
	if snap != nil {
		n.persist(snap)
	}
	return reply
}

func (n *Node) handleAppendEntries(args *AppendEntriesArgs) (*AppendEntriesReply, *PersistentState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	reply := &AppendEntriesReply{Term: n.currentTerm}
	var snap *PersistentState

	if args.Term < n.currentTerm {
		return reply, nil
	}
	if args.Term > n.currentTerm || n.state == Candidate {
		snap = n.becomeFollowerLocked(args.Term)
	}

	n.leaderID = args.LeaderID
	n.resetElectionTimerLocked()
	reply.Term = n.currentTerm

	if args.PrevLogIndex > 0 {
		entry, ok := n.rlog.get(args.PrevLogIndex)
		if !ok {
			reply.ConflictIndex = n.rlog.lastIndex() + 1
			return reply, snap
		}
		if entry.Term != args.PrevLogTerm {
			conflictTerm := entry.Term
			reply.ConflictTerm = conflictTerm
			reply.ConflictIndex = args.PrevLogIndex
			for idx := args.PrevLogIndex; idx > 0; idx-- {
				e, ok := n.rlog.get(idx)
				if !ok || e.Term != conflictTerm {
					break
				}
				reply.ConflictIndex = idx
			}
			return reply, snap
		}
	}

	for i, entry := range args.Entries {
		idx := args.PrevLogIndex + 1 + uint64(i)
		existing, ok := n.rlog.get(idx)
		if ok {
			if existing.Term != entry.Term {
				n.rlog.truncateFrom(idx)
				n.rlog.append(args.Entries[i:]...)
				break
			}
			continue
		}
		n.rlog.append(args.Entries[i:]...)
		break
	}

	if len(args.Entries) > 0 {
		snap = n.snapshotLocked()
	}

	if args.LeaderCommit > n.commitIndex {
		lastNewIndex := args.PrevLogIndex + uint64(len(args.Entries))
		newCommit := args.LeaderCommit
		if newCommit > lastNewIndex {
			newCommit = lastNewIndex
		}
		if newCommit > n.persistedIndex {
			newCommit = n.persistedIndex
		}
		if newCommit > n.commitIndex {
			n.commitIndex = newCommit
		}
	}

	reply.Success = true
	return reply, snap
}

// Propose appends cmd to the leader's log and waits for it to be committed
// and applied, returning the state machine's result bytes. The entry is
// persisted before any caller can observe it as committed — commitIndex is
// capped by persistedIndex — so a reply is never sent for an entry that
// wouldn't survive a crash.
func (n *Node) Propose(ctx context.Context, cmd Command) (CommitResult, error) {
	entry, resultCh, snap, err := n.appendProposalLocked(cmd)
	if err != nil {
		return CommitResult{}, err
	}
	n.persist(snap)

	select {
	case result := <-resultCh:
		return result, result.Err
	case <-ctx.Done():
		n.cancelProposal(entry.Index)
		return CommitResult{}, ctx.Err()
	case <-n.stopCh:
		return CommitResult{}, ErrShuttingDown
	}
}

func (n *Node) appendProposalLocked(cmd Command) (LogEntry, chan CommitResult, *PersistentState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != Leader {
		return LogEntry{}, nil, nil, ErrNotLeader
	}

	entry := LogEntry{
		Index:   n.rlog.lastIndex() + 1,
		Term:    n.currentTerm,
		Command: cmd,
	}
	n.rlog.append(entry)
	snap := n.snapshotLocked()

	resultCh := make(chan CommitResult, 1)
	n.pendingProposals[entry.Index] = &pendingProposal{
		index:    entry.Index,
		term:     entry.Term,
		resultCh: resultCh,
	}
	return entry, resultCh, snap, nil
}

func (n *Node) cancelProposal(index uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pendingProposals, index)
}

func (n *Node) applyLoop() {
	for {
		select {
		case <-n.stopCh:
			return
		default:
		}

		commitIndex, lastApplied := n.applyWindow()

		for i := lastApplied + 1; i <= commitIndex; i++ {
			entry, ok := n.rlog.get(i)
			if !ok {
				break
			}

			result := n.stateMachine.Apply(entry.Command)
			n.recordApplied(i, entry.Term, result)
		}

		select {
		case <-n.stopCh:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (n *Node) applyWindow() (commitIndex, lastApplied uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.commitIndex, n.lastApplied
}

func (n *Node) recordApplied(i, term uint64, result []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastApplied = i
	if pending, ok := n.pendingProposals[i]; ok {
		select {
		case pending.resultCh <- CommitResult{Index: i, Term: term, Result: result}:
		default:
		}
		delete(n.pendingProposals, i)
	}
}

// becomeFollowerLocked must be called with n.mu held. It returns the
// persistent-state snapshot the caller must persist once n.mu is released.
func (n *Node) becomeFollowerLocked(term uint64) *PersistentState {
	log.Printf("raft[%s]: becoming follower for term %d", n.id, term)
	n.state = Follower
	n.currentTerm = term
	n.votedFor = ""
	n.leaderID = ""

	for idx, pending := range n.pendingProposals {
		select {
		case pending.resultCh <- CommitResult{Index: idx, Err: ErrLeadershipLost}:
		default:
		}
	}
	n.pendingProposals = make(map[uint64]*pendingProposal)

	return n.snapshotLocked()
}

func (n *Node) becomeCandidate() {
	log.Printf("raft[%s]: becoming candidate for term %d", n.id, n.currentTerm+1)
	n.state = Candidate
}

// becomeLeaderLocked must be called with n.mu held. It returns the
// persistent-state snapshot the caller must persist once n.mu is released.
func (n *Node) becomeLeaderLocked() *PersistentState {
	log.Printf("raft[%s]: becoming leader for term %d", n.id, n.currentTerm)
	n.state = Leader
	n.leaderID = n.id

	lastLogIndex := n.rlog.lastIndex()
	for _, peer := range n.peers {
		n.nextIndex[peer] = lastLogIndex + 1
		n.matchIndex[peer] = 0
	}

	// A leader commits a no-op entry from its own term immediately on
	// election so entries from prior terms become committable (§5.4.2).
	n.rlog.append(LogEntry{
		Index:   lastLogIndex + 1,
		Term:    n.currentTerm,
		Command: Command{Type: CommandNoop, ClientID: "system-noop", RequestSeq: lastLogIndex + 1},
	})
	return n.snapshotLocked()
}

func (n *Node) isLogUpToDateLocked(lastLogIndex, lastLogTerm uint64) bool {
	myLastTerm := n.rlog.lastTerm()
	myLastIndex := n.rlog.lastIndex()
	if lastLogTerm != myLastTerm {
		return lastLogTerm > myLastTerm
	}
	return lastLogIndex >= myLastIndex
}

func (n *Node) randomElectionTimeout() time.Duration {
	lo := int64(n.config.ElectionTimeoutMin)
	hi := int64(n.config.ElectionTimeoutMax)
	if hi <= lo {
		return time.Duration(lo)
	}
	return time.Duration(lo + rand.Int63n(hi-lo))
}

func (n *Node) resetElectionTimerLocked() {
	select {
	case n.electionResetCh <- struct{}{}:
	default:
	}
	n.electionMu.Lock()
	n.electionDeadline = time.Now().Add(n.randomElectionTimeout())
	n.electionMu.Unlock()
}

// snapshotLocked must be called with n.mu held. The returned value is a
// self-contained copy safe to hand to persist() after n.mu is released.
func (n *Node) snapshotLocked() *PersistentState {
	return &PersistentState{
		CurrentTerm: n.currentTerm,
		VotedFor:    n.votedFor,
		Log:         n.rlog.snapshot(),
	}
}

// persist durably saves state without ever holding n.mu across the write.
// It only reacquires n.mu afterward, briefly, to publish persistedIndex — a
// cheap in-memory update, not the I/O itself. A failed Save leaves
// persistedIndex unadvanced, so no entry that failed to persist can ever be
// committed or applied.
func (n *Node) persist(state *PersistentState) {
	if state == nil {
		return
	}
	if n.wal != nil {
		if err := n.wal.Save(state); err != nil {
			log.Printf("raft[%s]: failed to persist state: %v", n.id, err)
			return
		}
	}
	if len(state.Log) == 0 {
		return
	}
	idx := state.Log[len(state.Log)-1].Index
	n.mu.Lock()
	if idx > n.persistedIndex {
		n.persistedIndex = idx
	}
	n.mu.Unlock()
}

func (n *Node) restore() error {
	if n.wal == nil {
		return nil
	}
	state, err := n.wal.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	n.currentTerm = state.CurrentTerm
	n.votedFor = state.VotedFor
	if len(state.Log) > 0 {
		n.rlog.restore(state.Log)
		n.persistedIndex = state.Log[len(state.Log)-1].Index
	}
	return nil
}

// GetState reports (currentTerm, isLeader), used by the HTTP /status handler.
func (n *Node) GetState() (uint64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.currentTerm, n.state == Leader
}

func (n *Node) GetLeaderID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.leaderID
}

func (n *Node) GetID() string {
	return n.id
}

func (n *Node) IsLeader() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state == Leader
}

func (n *Node) GetCommitIndex() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.commitIndex
}

func (n *Node) GetLastApplied() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastApplied
}

func (n *Node) GetLog() []LogEntry {
	return n.rlog.snapshot()
}
