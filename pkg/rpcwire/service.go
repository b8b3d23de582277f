package rpcwire

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vzdtic/movieticket-raft/pkg/raft"
)

const serviceName = "movieticketraft.RaftTransport"

// RaftTransportServer is implemented by the peer-RPC handler side of a Raft
// node (pkg/grpc.raftServer adapts *raft.Node to this).
type RaftTransportServer interface {
	HandleRequestVote(args *raft.RequestVoteArgs) *raft.RequestVoteReply
	HandleAppendEntries(args *raft.AppendEntriesArgs) *raft.AppendEntriesReply
}

func requestVoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raft.RequestVoteArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServer).HandleRequestVote(in), nil
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RequestVote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServer).HandleRequestVote(req.(*raft.RequestVoteArgs)), nil
	}
	return interceptor(ctx, in, info, handler)
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raft.AppendEntriesArgs)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServer).HandleAppendEntries(in), nil
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/AppendEntries"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServer).HandleAppendEntries(req.(*raft.AppendEntriesArgs)), nil
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc registers the two peer RPCs against a *grpc.Server, the
// manual equivalent of a generated _ServiceDesc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RaftTransportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: requestVoteHandler},
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/rpcwire/service.go",
}

// Client is the manual equivalent of a generated *RaftTransportClient.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) RequestVote(ctx context.Context, in *raft.RequestVoteArgs) (*raft.RequestVoteReply, error) {
	out := new(raft.RequestVoteReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RequestVote", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AppendEntries(ctx context.Context, in *raft.AppendEntriesArgs) (*raft.AppendEntriesReply, error) {
	out := new(raft.AppendEntriesReply)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/AppendEntries", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}
