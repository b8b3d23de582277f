// Package rpcwire is the wire layer peer RPCs travel over: a gob
// grpc.Codec plus a hand-written grpc.ServiceDesc/client for the
// RequestVote/AppendEntries pair, standing in for what protoc would
// normally generate from a .proto file.
package rpcwire

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

const codecName = "gob"

// gobCodec implements google.golang.org/grpc/encoding.Codec. Raft's messages
// are plain structs with no wire-compatibility requirement across versions,
// so gob's reflection-based encoding is enough — there's no schema evolution
// story to buy from protobuf here.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
