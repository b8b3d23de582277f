package raft

import "sync"

// Log is the in-memory ordered sequence of LogEntry records. Index 0 is a
// sentinel {Term: 0} entry; it is never removed and never counted as "real"
// data. Log itself does not talk to disk — Node calls persist() after any
// mutation that must survive a crash before a dependent reply is sent.
type Log struct {
	mu      sync.RWMutex
	entries []LogEntry // entries[0] is always the sentinel
}

func newLog() *Log {
	l := &Log{entries: make([]LogEntry, 0, 64)}
	l.entries = append(l.entries, LogEntry{Index: 0, Term: 0})
	return l
}

// restore replaces the log wholesale, used when loading persisted state.
// If entries is empty or doesn't start with the sentinel, the sentinel is
// (re)inserted so callers never have to special-case index 0.
func (l *Log) restore(entries []LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) == 0 || entries[0].Index != 0 {
		fixed := make([]LogEntry, 0, len(entries)+1)
		fixed = append(fixed, LogEntry{Index: 0, Term: 0})
		fixed = append(fixed, entries...)
		l.entries = fixed
		return
	}
	l.entries = append([]LogEntry(nil), entries...)
}

// snapshot returns a copy of the full entry slice (including the sentinel),
// suitable for persisting or for sending to a test harness.
func (l *Log) snapshot() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// append adds entries after the current last index and returns the new
// lastIndex. Callers are responsible for assigning correct (index, term)
// pairs — append itself does not validate monotonicity, since only Node ever
// calls it under lock.
func (l *Log) append(entries ...LogEntry) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
	return l.entries[len(l.entries)-1].Index
}

// get returns the entry at index, or (LogEntry{}, false) if index is out of
// range (either before the log's base or past lastIndex).
func (l *Log) get(index uint64) (LogEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos := l.posLocked(index)
	if pos < 0 || pos >= len(l.entries) {
		return LogEntry{}, false
	}
	return l.entries[pos], true
}

// slice returns entries with index in [from, to), or nil if the range is
// entirely out of bounds.
func (l *Log) slice(from, to uint64) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fromPos := l.posLocked(from)
	toPos := l.posLocked(to)
	if fromPos < 0 {
		fromPos = 0
	}
	if toPos > len(l.entries) {
		toPos = len(l.entries)
	}
	if fromPos >= toPos {
		return nil
	}
	out := make([]LogEntry, toPos-fromPos)
	copy(out, l.entries[fromPos:toPos])
	return out
}

// tail returns every entry with index >= from.
func (l *Log) tail(from uint64) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos := l.posLocked(from)
	if pos < 0 {
		pos = 0
	}
	if pos >= len(l.entries) {
		return nil
	}
	out := make([]LogEntry, len(l.entries)-pos)
	copy(out, l.entries[pos:])
	return out
}

// truncateFrom removes every entry with index >= index (leader append-only
// invariant: only ever called on a follower reconciling against a leader, or
// never on entries already committed in an earlier term).
func (l *Log) truncateFrom(index uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos := l.posLocked(index)
	if pos < 0 {
		pos = 0
	}
	if pos < len(l.entries) {
		l.entries = l.entries[:pos]
	}
}

func (l *Log) lastIndex() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Index
}

func (l *Log) lastTerm() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Term
}

func (l *Log) termAt(index uint64) (uint64, bool) {
	e, ok := l.get(index)
	if !ok {
		return 0, false
	}
	return e.Term, true
}

// posLocked maps a log index to its slice position. l.mu must be held.
func (l *Log) posLocked(index uint64) int {
	if len(l.entries) == 0 {
		return -1
	}
	base := l.entries[0].Index
	if index < base {
		return -1
	}
	return int(index - base)
}
