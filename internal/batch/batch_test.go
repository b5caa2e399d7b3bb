package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/metrics"
	"github.com/amitsaini144/solagram/internal/model"
)

// recordingClient serves records from a map and counts multi-get calls.
type recordingClient struct {
	records map[model.Address][]byte
	calls   int
	fetched int
	err     error
}

func (c *recordingClient) GetRecord(ctx context.Context, addr model.Address) (*ledger.Record, error) {
	recs, err := c.GetRecords(ctx, []model.Address{addr})
	if err != nil {
		return nil, err
	}
	if recs[0] == nil {
		return nil, xerrors.ErrNotFound
	}
	return recs[0], nil
}

func (c *recordingClient) GetRecords(_ context.Context, addrs []model.Address) ([]*ledger.Record, error) {
	c.calls++
	c.fetched += len(addrs)
	if c.err != nil {
		return nil, c.err
	}
	out := make([]*ledger.Record, len(addrs))
	for i, a := range addrs {
		if payload, ok := c.records[a]; ok {
			out[i] = &ledger.Record{Address: a, Payload: payload, Slot: 1}
		}
	}
	return out, nil
}

func (c *recordingClient) ScanRecords(context.Context, []ledger.ScanFilter) ([]*ledger.Record, error) {
	return nil, nil
}

func (c *recordingClient) SubmitInstruction(context.Context, ledger.Instruction) (ledger.TxID, error) {
	return "", nil
}

func (c *recordingClient) Health(context.Context) (uint64, error) { return 0, nil }

func addrOf(b byte) model.Address {
	var a model.Address
	a[0] = b
	return a
}

// decodeASCII fails on any payload that is not a single printable byte.
func decodeASCII(payload []byte) (string, error) {
	if len(payload) != 1 || payload[0] < ' ' {
		return "", errors.New("bad payload")
	}
	return string(payload), nil
}

func TestFetchDeduplicatesAndChunks(t *testing.T) {
	client := &recordingClient{records: map[model.Address][]byte{}}
	var addrs []model.Address
	for i := byte(1); i <= 25; i++ {
		client.records[addrOf(i)] = []byte{'a'}
		// Every address requested twice.
		addrs = append(addrs, addrOf(i), addrOf(i))
	}

	p := NewPlanner(client, 10, metrics.NewMetrics(), zap.NewNop())
	got, failures, err := Fetch(context.Background(), p, addrs, decodeASCII)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Len(t, got, 25)

	assert.Equal(t, 3, client.calls, "25 unique addresses at batch size 10")
	assert.Equal(t, 25, client.fetched, "duplicates must not be re-fetched")
}

func TestFetchTreatsDecodeFailureAsAbsent(t *testing.T) {
	good, bad, missing := addrOf(1), addrOf(2), addrOf(3)
	client := &recordingClient{records: map[model.Address][]byte{
		good: {'x'},
		bad:  {0x00, 0x01}, // undecodable
	}}

	p := NewPlanner(client, 0, metrics.NewMetrics(), zap.NewNop())
	got, failures, err := Fetch(context.Background(), p, []model.Address{good, bad, missing}, decodeASCII)
	require.NoError(t, err)

	assert.Equal(t, map[model.Address]string{good: "x"}, got)
	require.Len(t, failures, 1)
	assert.Equal(t, bad, failures[0].Address)
	_, inMap := got[bad]
	assert.False(t, inMap)
}

func TestFetchPropagatesTransportError(t *testing.T) {
	boom := xerrors.NewRemote("record_getMultiple", errors.New("connection refused"))
	client := &recordingClient{err: boom}

	p := NewPlanner(client, 10, metrics.NewMetrics(), zap.NewNop())
	_, _, err := Fetch(context.Background(), p, []model.Address{addrOf(1)}, decodeASCII)
	require.Error(t, err)
	assert.True(t, xerrors.IsRemote(err))
}

func TestFetchEmptyInput(t *testing.T) {
	client := &recordingClient{}
	p := NewPlanner(client, 10, metrics.NewMetrics(), zap.NewNop())

	got, failures, err := Fetch(context.Background(), p, nil, decodeASCII)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, failures)
	assert.Zero(t, client.calls, "no node call for an empty address set")
}

func TestFetchRaw(t *testing.T) {
	a, b := addrOf(1), addrOf(2)
	client := &recordingClient{records: map[model.Address][]byte{a: {'x'}}}

	p := NewPlanner(client, 10, metrics.NewMetrics(), zap.NewNop())
	got, err := p.FetchRaw(context.Background(), []model.Address{a, b, a})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{'x'}, got[a].Payload)
	assert.Equal(t, 1, client.calls)
}
