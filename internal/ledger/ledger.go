// Package ledger talks to a solagram ledger node. The node exposes the
// content-addressed record store over JSON-RPC and pushes record change
// notifications over a websocket stream.
package ledger

import (
	"context"
	"encoding/binary"

	"github.com/amitsaini144/solagram/internal/codec"
	"github.com/amitsaini144/solagram/internal/model"
)

// Record is a stored record as returned by the node.
type Record struct {
	Address model.Address
	Owner   model.Identity
	Payload []byte
	Slot    uint64
}

// ScanFilter matches records whose payload contains Bytes at Offset.
// Filtering on the 8-byte discriminator at offset 0 selects a record kind,
// filtering on an identity at its field offset selects an author.
type ScanFilter struct {
	Offset uint32
	Bytes  []byte
}

// TxID identifies a submitted transaction on the ledger.
type TxID string

// Instruction is a signed program call. Args carry the method's encoded
// arguments, Accounts the record addresses the call touches. Signature is
// produced by the actor's wallet over SigningBytes.
type Instruction struct {
	Program   model.Identity
	Method    string
	Args      []byte
	Accounts  []model.Address
	Actor     model.Identity
	Signature []byte
}

// SigningBytes returns the canonical byte form covered by the actor's
// signature. The signature field itself is excluded.
func (in Instruction) SigningBytes() []byte {
	b := append([]byte(nil), in.Program[:]...)
	b = codec.AppendString(b, in.Method)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(in.Args)))
	b = append(b, in.Args...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(in.Accounts)))
	for _, a := range in.Accounts {
		b = append(b, a[:]...)
	}
	return append(b, in.Actor[:]...)
}

// RecordClient is the node access contract the sync engine depends on.
// Implementations must be safe for concurrent use.
//
// GetRecord returns xerrors.ErrNotFound for an absent address. GetRecords
// returns a slice aligned with the requested addresses, absent entries nil.
// SubmitInstruction surfaces program rejections as xerrors.WriteRejected.
type RecordClient interface {
	GetRecord(ctx context.Context, addr model.Address) (*Record, error)
	GetRecords(ctx context.Context, addrs []model.Address) ([]*Record, error)
	ScanRecords(ctx context.Context, filters []ScanFilter) ([]*Record, error)
	SubmitInstruction(ctx context.Context, in Instruction) (TxID, error)
	Health(ctx context.Context) (uint64, error)
}
