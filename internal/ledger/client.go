package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/model"
)

// DefaultMaxBatchSize is the node's multi-get address limit.
const DefaultMaxBatchSize = 100

// Config holds node connection settings.
type Config struct {
	Endpoint       string        // JSON-RPC endpoint, e.g. http://127.0.0.1:8899
	RequestTimeout time.Duration // per-attempt timeout
	MaxRetries     int           // extra attempts for read calls on transport failure
	RetryBackoff   time.Duration // base backoff between attempts, doubled per retry
	RateLimit      float64       // outbound requests per second, 0 disables throttling
	RateBurst      int
	MaxBatchSize   int // multi-get address limit, callers chunk above it
}

// Client is a JSON-RPC RecordClient over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger

	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	maxBatch   int

	nextID atomic.Uint64
}

var _ RecordClient = (*Client)(nil)

// NewClient creates a node client from cfg.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		http:       &http.Client{Timeout: timeout + 5*time.Second},
		limiter:    limiter,
		logger:     logger,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
		maxBatch:   maxBatch,
	}
}

// wireRecord is the node's JSON shape for a stored record.
type wireRecord struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Payload string `json:"payload"` // base64
	Slot    uint64 `json:"slot"`
}

type wireFilter struct {
	Offset uint32 `json:"offset"`
	Bytes  string `json:"bytes"` // base64
}

type wireInstruction struct {
	Program   string   `json:"program"`
	Method    string   `json:"method"`
	Args      string   `json:"args"` // base64
	Accounts  []string `json:"accounts"`
	Actor     string   `json:"actor"`
	Signature string   `json:"signature"` // base64
}

type wireHealth struct {
	Status string `json:"status"`
	Slot   uint64 `json:"slot"`
}

// GetRecord fetches one record. Absent addresses map to xerrors.ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, addr model.Address) (*Record, error) {
	params := map[string]string{"address": addr.String()}

	var res *wireRecord
	if err := c.callRetry(ctx, "record_get", params, &res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, xerrors.ErrNotFound
	}
	return c.fromWireRecord(*res)
}

// GetRecords fetches many records in one call. The result is aligned with
// addrs; absent entries are nil. Requests above the batch limit are
// rejected rather than silently truncated, chunking is the caller's job.
func (c *Client) GetRecords(ctx context.Context, addrs []model.Address) ([]*Record, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	if len(addrs) > c.maxBatch {
		return nil, xerrors.NewInput("requested %d records, multi-get limit is %d", len(addrs), c.maxBatch)
	}

	wired := make([]string, len(addrs))
	for i, a := range addrs {
		wired[i] = a.String()
	}
	params := map[string][]string{"addresses": wired}

	var res []*wireRecord
	if err := c.callRetry(ctx, "record_getMultiple", params, &res); err != nil {
		return nil, err
	}
	if len(res) != len(addrs) {
		return nil, xerrors.NewRemote("record_getMultiple",
			fmt.Errorf("node returned %d records for %d addresses", len(res), len(addrs)))
	}

	out := make([]*Record, len(res))
	for i, wr := range res {
		if wr == nil {
			continue
		}
		rec, err := c.fromWireRecord(*wr)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// ScanRecords returns every record matching all filters.
func (c *Client) ScanRecords(ctx context.Context, filters []ScanFilter) ([]*Record, error) {
	wired := make([]wireFilter, len(filters))
	for i, f := range filters {
		wired[i] = wireFilter{
			Offset: f.Offset,
			Bytes:  base64.StdEncoding.EncodeToString(f.Bytes),
		}
	}
	params := map[string][]wireFilter{"filters": wired}

	var res []*wireRecord
	if err := c.callRetry(ctx, "record_scan", params, &res); err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(res))
	for _, wr := range res {
		if wr == nil {
			continue
		}
		rec, err := c.fromWireRecord(*wr)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SubmitInstruction sends a signed instruction. It is never retried; the
// caller decides whether a failed submission is safe to repeat.
func (c *Client) SubmitInstruction(ctx context.Context, in Instruction) (TxID, error) {
	accounts := make([]string, len(in.Accounts))
	for i, a := range in.Accounts {
		accounts[i] = a.String()
	}
	params := wireInstruction{
		Program:   in.Program.String(),
		Method:    in.Method,
		Args:      base64.StdEncoding.EncodeToString(in.Args),
		Accounts:  accounts,
		Actor:     in.Actor.String(),
		Signature: base64.StdEncoding.EncodeToString(in.Signature),
	}

	var txid string
	if err := c.call(ctx, "instruction_submit", params, &txid); err != nil {
		return "", err
	}
	return TxID(txid), nil
}

// Health probes the node and returns its current slot.
func (c *Client) Health(ctx context.Context) (uint64, error) {
	var res wireHealth
	if err := c.call(ctx, "ledger_health", nil, &res); err != nil {
		return 0, err
	}
	if res.Status != "ok" {
		return res.Slot, xerrors.NewRemote("ledger_health", fmt.Errorf("node status %q", res.Status))
	}
	return res.Slot, nil
}

// callRetry wraps call with transport-level retries for idempotent reads.
// JSON-RPC level errors are returned immediately.
func (c *Client) callRetry(ctx context.Context, method string, params, result interface{}) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.logger.Warn("retrying node call",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return xerrors.NewRemote(method, ctx.Err())
			}
		}

		err = c.call(ctx, method, params, result)
		if err == nil || !xerrors.IsRemote(err) {
			return err
		}
	}
	return err
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC exchange and decodes the result into result.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return xerrors.NewRemote(method, err)
		}
	}

	// Set timeout
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return xerrors.NewRemote(method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return xerrors.NewRemote(method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.NewRemote(method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return xerrors.NewRemote(method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return xerrors.NewRemote(method, fmt.Errorf("node returned HTTP %d", resp.StatusCode))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return xerrors.NewRemote(method, fmt.Errorf("malformed node response: %w", err))
	}

	c.logger.Debug("node call",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)))

	if rpcResp.Error != nil {
		return c.mapRPCError(method, rpcResp.Error)
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return xerrors.NewRemote(method, fmt.Errorf("malformed result: %w", err))
		}
	}
	return nil
}

// mapRPCError classifies a JSON-RPC error. Program rejection codes start at
// 6000; everything else is a node-side failure.
func (c *Client) mapRPCError(method string, e *rpcError) error {
	if e.Code >= 6000 {
		return xerrors.NewRejected(xerrors.RejectCode(e.Code))
	}
	return xerrors.NewRemote(method, fmt.Errorf("rpc error %d: %s", e.Code, e.Message))
}

// fromWireRecord converts the node's JSON record shape.
func (c *Client) fromWireRecord(wr wireRecord) (*Record, error) {
	addr, err := model.ParseAddress(wr.Address)
	if err != nil {
		return nil, xerrors.NewRemote("record decode", err)
	}
	owner, err := model.ParseIdentity(wr.Owner)
	if err != nil {
		return nil, xerrors.NewRemote("record decode", err)
	}
	payload, err := base64.StdEncoding.DecodeString(wr.Payload)
	if err != nil {
		return nil, xerrors.NewRemote("record decode", err)
	}
	return &Record{Address: addr, Owner: owner, Payload: payload, Slot: wr.Slot}, nil
}
