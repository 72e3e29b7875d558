// Package database defines the data model for the blockchain and the byte
// encoding used to hash, store and share blocks, transactions and accounts.
package database

import (
	"github.com/ugorji/go/codec"
)

// handle is the binary codec used for every value that is hashed, stored
// or sent across the network. Structs are encoded as arrays in field order
// so the bytes are stable for hashing.
var handle = newHandle()

func newHandle() *codec.BincHandle {
	var h codec.BincHandle
	h.StructToArray = true
	h.Canonical = true
	return &h
}

// Encode converts the value into its binary representation.
func Encode(v any) ([]byte, error) {
	var data []byte
	if err := codec.NewEncoderBytes(&data, handle).Encode(v); err != nil {
		return nil, &CoreError{Kind: Serialization, Msg: err.Error()}
	}

	return data, nil
}

// Decode converts the binary representation back into the value pointed
// to by v.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return &CoreError{Kind: Parsing, Msg: "no data to decode"}
	}

	if err := codec.NewDecoderBytes(data, handle).Decode(v); err != nil {
		return &CoreError{Kind: Parsing, Msg: err.Error()}
	}

	return nil
}
