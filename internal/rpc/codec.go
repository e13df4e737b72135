// Package rpc serves the ledger operations as the Connect service
// spendingdiary.v1.LedgerService.
//
// Messages are plain Go structs carried by a JSON codec, so the same
// procedures answer Connect, gRPC-Web and curl clients posting
// application/json.
package rpc

import "encoding/json"

// JSONCodec marshals messages with encoding/json. It registers under the name
// "json" and so replaces connect's protobuf-only JSON codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
