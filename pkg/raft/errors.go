package raft

import "errors"

var (
	ErrNotLeader      = errors.New("not the leader")
	ErrLeadershipLost = errors.New("leadership lost before commit")
	ErrTimeout        = errors.New("operation timed out")
	ErrNodeNotFound   = errors.New("node not found")
	ErrShuttingDown   = errors.New("node is shutting down")
)
