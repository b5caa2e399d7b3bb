// Package batch plans multi-record fetches. Related addresses are
// deduplicated and fetched through the node's multi-get in fixed-size
// chunks instead of one call per record.
package batch

import (
	"context"

	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/metrics"
	"github.com/amitsaini144/solagram/internal/model"
)

// DefaultMaxBatch is the node's multi-get address limit.
const DefaultMaxBatch = 100

// DecodeFailure records a payload that could not be decoded. The planner
// treats the record as absent so one corrupt record cannot sink a whole
// view.
type DecodeFailure struct {
	Address model.Address
	Err     error
}

// Planner fetches record sets with as few node calls as possible.
type Planner struct {
	client   ledger.RecordClient
	maxBatch int
	met      *metrics.Metrics
	logger   *zap.Logger
}

// NewPlanner creates a planner. maxBatch bounds addresses per node call;
// values below 1 fall back to DefaultMaxBatch.
func NewPlanner(client ledger.RecordClient, maxBatch int, met *metrics.Metrics, logger *zap.Logger) *Planner {
	if maxBatch < 1 {
		maxBatch = DefaultMaxBatch
	}
	return &Planner{client: client, maxBatch: maxBatch, met: met, logger: logger}
}

// Fetch retrieves the records at addrs and decodes each payload with
// decode. Duplicate addresses are fetched once. Absent records are simply
// missing from the result map; payloads decode rejects are returned as
// DecodeFailures and left out of the map. A transport failure aborts the
// whole fetch.
func Fetch[T any](ctx context.Context, p *Planner, addrs []model.Address, decode func([]byte) (T, error)) (map[model.Address]T, []DecodeFailure, error) {
	unique := dedup(addrs)
	if len(unique) == 0 {
		return map[model.Address]T{}, nil, nil
	}

	out := make(map[model.Address]T, len(unique))
	var failures []DecodeFailure

	for start := 0; start < len(unique); start += p.maxBatch {
		end := start + p.maxBatch
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		recs, err := p.client.GetRecords(ctx, chunk)
		if err != nil {
			return nil, nil, err
		}
		p.met.RecordBatchCall(len(chunk))

		for i, rec := range recs {
			if rec == nil {
				continue
			}
			v, err := decode(rec.Payload)
			if err != nil {
				p.logger.Warn("undecodable record treated as absent",
					zap.String("address", chunk[i].String()),
					zap.Error(err))
				failures = append(failures, DecodeFailure{Address: chunk[i], Err: err})
				continue
			}
			out[chunk[i]] = v
		}
	}
	return out, failures, nil
}

// FetchRaw retrieves raw records without decoding, deduplicated and
// chunked like Fetch.
func (p *Planner) FetchRaw(ctx context.Context, addrs []model.Address) (map[model.Address]*ledger.Record, error) {
	unique := dedup(addrs)
	if len(unique) == 0 {
		return map[model.Address]*ledger.Record{}, nil
	}

	out := make(map[model.Address]*ledger.Record, len(unique))
	for start := 0; start < len(unique); start += p.maxBatch {
		end := start + p.maxBatch
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		recs, err := p.client.GetRecords(ctx, chunk)
		if err != nil {
			return nil, err
		}
		p.met.RecordBatchCall(len(chunk))
		for i, rec := range recs {
			if rec != nil {
				out[chunk[i]] = rec
			}
		}
	}
	return out, nil
}

// dedup keeps the first occurrence of each address, preserving order so
// chunk boundaries stay deterministic.
func dedup(addrs []model.Address) []model.Address {
	seen := make(map[model.Address]struct{}, len(addrs))
	out := make([]model.Address, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
