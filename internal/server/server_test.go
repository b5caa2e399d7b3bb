package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/codec"
	"github.com/amitsaini144/solagram/internal/config"
	"github.com/amitsaini144/solagram/internal/derive"
	"github.com/amitsaini144/solagram/internal/engine"
	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/health"
	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/metrics"
	"github.com/amitsaini144/solagram/internal/model"
	"github.com/amitsaini144/solagram/internal/wallet"
)

// fakeLedger is the in-memory node the API tests run against.
type fakeLedger struct {
	mu      sync.Mutex
	records map[model.Address]*ledger.Record
	slot    uint64

	scanErr   error
	submitErr error
	submits   []ledger.Instruction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[model.Address]*ledger.Record), slot: 7}
}

func (f *fakeLedger) put(addr model.Address, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[addr] = &ledger.Record{Address: addr, Payload: payload, Slot: 1}
}

func (f *fakeLedger) remove(addr model.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, addr)
}

func (f *fakeLedger) GetRecord(ctx context.Context, addr model.Address) (*ledger.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[addr]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rec, nil
}

func (f *fakeLedger) GetRecords(ctx context.Context, addrs []model.Address) ([]*ledger.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*ledger.Record, len(addrs))
	for i, a := range addrs {
		out[i] = f.records[a]
	}
	return out, nil
}

func (f *fakeLedger) ScanRecords(ctx context.Context, filters []ledger.ScanFilter) ([]*ledger.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var out []*ledger.Record
	for _, rec := range f.records {
		if matchesFilters(rec.Payload, filters) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeLedger) SubmitInstruction(ctx context.Context, in ledger.Instruction) (ledger.TxID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, in)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "tx-1", nil
}

func (f *fakeLedger) Health(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slot, nil
}

func (f *fakeLedger) submitted() []ledger.Instruction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.Instruction(nil), f.submits...)
}

func matchesFilters(payload []byte, filters []ledger.ScanFilter) bool {
	for _, flt := range filters {
		end := int(flt.Offset) + len(flt.Bytes)
		if end > len(payload) || !bytes.Equal(payload[flt.Offset:end], flt.Bytes) {
			return false
		}
	}
	return true
}

// api wires a full server over a fake ledger.
type api struct {
	t       *testing.T
	deriver *derive.Deriver
	led     *fakeLedger
	eng     *engine.Engine
	srv     *Server
}

func newAPI(t *testing.T) *api {
	t.Helper()
	var program model.Identity
	program[0] = 0x55

	led := newFakeLedger()
	deriver := derive.NewDeriver(program)
	met := metrics.NewMetrics()
	eng, err := engine.New(deriver, led, engine.Config{MaxBatchSize: 100}, met, zap.NewNop())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Server.RateLimiter.Enabled = false

	checker := health.NewChecker(led, met, zap.NewNop())
	srv := NewServer(cfg, eng, checker, met, zap.NewNop())
	srv.SetupRoutes()

	return &api{t: t, deriver: deriver, led: led, eng: eng, srv: srv}
}

func (a *api) identity(b byte) model.Identity {
	var id model.Identity
	id[0] = b
	return id
}

func (a *api) connect(b byte) model.Identity {
	seed := bytes.Repeat([]byte{b}, wallet.SeedLength)
	kw, err := wallet.FromSeed(seed)
	require.NoError(a.t, err)
	a.eng.Connect(kw)
	return kw.Identity()
}

func (a *api) addProfile(owner model.Identity, handle string) model.Address {
	addr := a.deriver.ProfileAddress(owner)
	a.led.put(addr, codec.EncodeProfile(model.Profile{
		Authority: owner,
		Handle:    handle,
		CreatedAt: 1000,
		UpdatedAt: 1000,
	}))
	return addr
}

func (a *api) addPost(owner model.Identity, content string, createdAt int64) model.Address {
	addr := a.deriver.PostAddress(owner, derive.DigestContent(content))
	a.led.put(addr, codec.EncodePost(model.Post{
		Authority: owner,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}))
	return addr
}

func (a *api) addComment(owner model.Identity, post model.Address, content string, createdAt int64) model.Address {
	addr := a.deriver.CommentAddress(owner, post, derive.DigestContent(content))
	a.led.put(addr, codec.EncodeComment(model.Comment{
		Authority: owner,
		Post:      post,
		Content:   content,
		CreatedAt: createdAt,
	}))
	return addr
}

func (a *api) addFollow(follower, target model.Identity) model.Address {
	addr := a.deriver.FollowAddress(follower, target)
	a.led.put(addr, codec.EncodeFollowEdge(model.FollowEdge{
		Follower:  follower,
		Target:    target,
		CreatedAt: 1000,
	}))
	return addr
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	a.srv.GetHandler().ServeHTTP(rec, httptest.NewRequest(method, path, rdr))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestFeedEndpoint(t *testing.T) {
	a := newAPI(t)
	alice := a.identity(0x10)
	bob := a.identity(0x20)
	a.addProfile(alice, "alice")
	a.addProfile(bob, "bob")
	a.addPost(alice, "first", 100)
	a.addPost(bob, "second", 200)
	a.addPost(alice, "third", 300)

	rec := a.do(http.MethodGet, "/v1/feed", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	resp := decodeBody[PostListResponse](t, rec)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "third", resp.Posts[0].Content)
	assert.Equal(t, "second", resp.Posts[1].Content)
	assert.Equal(t, "first", resp.Posts[2].Content)
	assert.Equal(t, "alice", resp.Posts[0].AuthorHandle)
	assert.Equal(t, "bob", resp.Posts[1].AuthorHandle)
	assert.False(t, resp.Posts[0].AuthorMissing)
}

func TestFeedLedgerDownMapsToBadGateway(t *testing.T) {
	a := newAPI(t)
	a.led.scanErr = xerrors.NewRemote("record_scan", errors.New("connection refused"))

	rec := a.do(http.MethodGet, "/v1/feed", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeLedgerUnavailable, resp.ErrorCode)
}

func TestProfileEndpoint(t *testing.T) {
	a := newAPI(t)
	alice := a.identity(0x10)
	addr := a.addProfile(alice, "alice")

	rec := a.do(http.MethodGet, "/v1/profiles/"+alice.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ProfileJSON](t, rec)
	assert.Equal(t, addr.String(), resp.Address)
	assert.Equal(t, "alice", resp.Handle)
	assert.Equal(t, alice.String(), resp.Authority)
	assert.False(t, resp.IsFollowing)
}

func TestProfileAbsentIsNotFound(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/profiles/"+a.identity(0x66).String(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeNotFound, resp.ErrorCode)
}

func TestProfileBadIdentityRejected(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/profiles/nothex", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeInvalidRequest, resp.ErrorCode)
}

func TestPostsByCreatorEndpoint(t *testing.T) {
	a := newAPI(t)
	alice := a.identity(0x10)
	bob := a.identity(0x20)
	a.addProfile(alice, "alice")
	a.addPost(alice, "mine", 100)
	a.addPost(bob, "not mine", 200)

	rec := a.do(http.MethodGet, "/v1/profiles/"+alice.String()+"/posts", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[PostListResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "mine", resp.Posts[0].Content)
}

func TestCommentsEndpoint(t *testing.T) {
	a := newAPI(t)
	alice := a.identity(0x10)
	bob := a.identity(0x20)
	a.addProfile(bob, "bob")
	post := a.addPost(alice, "root", 100)
	a.addComment(bob, post, "late reply", 300)
	a.addComment(bob, post, "early reply", 200)

	rec := a.do(http.MethodGet, "/v1/posts/"+post.String()+"/comments", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[CommentListResponse](t, rec)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "early reply", resp.Comments[0].Content)
	assert.Equal(t, "late reply", resp.Comments[1].Content)
	assert.Equal(t, post.String(), resp.Comments[0].Post)
}

func TestCreatePostEndpoint(t *testing.T) {
	a := newAPI(t)
	actor := a.connect(0xAA)

	rec := a.do(http.MethodPost, "/v1/posts", map[string]string{"content": "hello ledger"})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[WriteResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "tx-1", resp.Tx)

	wantAddr := a.deriver.PostAddress(actor, derive.DigestContent("hello ledger"))
	assert.Equal(t, wantAddr.String(), resp.Address)

	subs := a.led.submitted()
	require.Len(t, subs, 1)
	assert.Equal(t, "create_post", subs[0].Method)
	assert.Equal(t, actor, subs[0].Actor)
}

func TestCreatePostWithoutWallet(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/posts", map[string]string{"content": "hello"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeInvalidRequest, resp.ErrorCode)
	assert.Contains(t, resp.Message, "no wallet connected")
}

func TestCreatePostEmptyContent(t *testing.T) {
	a := newAPI(t)
	a.connect(0xAA)

	rec := a.do(http.MethodPost, "/v1/posts", map[string]string{"content": "   "})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePostMalformedBody(t *testing.T) {
	a := newAPI(t)
	a.connect(0xAA)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/posts", bytes.NewReader([]byte("{not json")))
	a.srv.GetHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Message, "invalid request body")
}

func TestWriteRejectionMapsToConflict(t *testing.T) {
	a := newAPI(t)
	a.connect(0xAA)
	a.led.submitErr = xerrors.NewRejected(xerrors.RejectDuplicate)

	rec := a.do(http.MethodPost, "/v1/posts", map[string]string{"content": "same again"})

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeWriteRejected, resp.ErrorCode)
	assert.Equal(t, "record already exists at the derived address", resp.Message)
}

func TestWriteRejectionMapsToUnprocessable(t *testing.T) {
	a := newAPI(t)
	a.connect(0xAA)
	a.led.submitErr = xerrors.NewRejected(xerrors.RejectContentTooLong)

	rec := a.do(http.MethodPost, "/v1/posts", map[string]string{"content": "way too long"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrorCodeWriteRejected, resp.ErrorCode)
	assert.Equal(t, "content exceeds the maximum length", resp.Message)
}

func TestCreateCommentEndpoint(t *testing.T) {
	a := newAPI(t)
	actor := a.connect(0xAA)
	post := a.addPost(a.identity(0x10), "root", 100)

	rec := a.do(http.MethodPost, "/v1/posts/"+post.String()+"/comments", map[string]string{"content": "nice"})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[WriteResponse](t, rec)
	wantAddr := a.deriver.CommentAddress(actor, post, derive.DigestContent("nice"))
	assert.Equal(t, wantAddr.String(), resp.Address)

	subs := a.led.submitted()
	require.Len(t, subs, 1)
	assert.Equal(t, "create_comment", subs[0].Method)
}

func TestLikePostEndpoint(t *testing.T) {
	a := newAPI(t)
	a.connect(0xAA)
	post := a.addPost(a.identity(0x10), "root", 100)

	rec := a.do(http.MethodPost, "/v1/posts/"+post.String()+"/like", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	subs := a.led.submitted()
	require.Len(t, subs, 1)
	assert.Equal(t, "like_post", subs[0].Method)
	assert.Equal(t, post, subs[0].Accounts[0])
}

func TestDeletePostEndpoint(t *testing.T) {
	a := newAPI(t)
	actor := a.connect(0xAA)
	post := a.addPost(actor, "mine", 100)

	rec := a.do(http.MethodDelete, "/v1/posts/"+post.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	subs := a.led.submitted()
	require.Len(t, subs, 1)
	assert.Equal(t, "delete_post", subs[0].Method)
}

func TestUpsertProfileEndpoint(t *testing.T) {
	a := newAPI(t)
	a.connect(0xAA)

	rec := a.do(http.MethodPut, "/v1/profile", map[string]string{
		"handle":     "alice",
		"bio":        "hi there",
		"avatar_url": "https://cdn.local/a.png",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	subs := a.led.submitted()
	require.Len(t, subs, 1)
	assert.Equal(t, "upsert_profile", subs[0].Method)
}

func TestFollowLifecycleEndpoints(t *testing.T) {
	a := newAPI(t)
	actor := a.connect(0xAA)
	target := a.identity(0x10)

	// Nothing followed yet.
	rec := a.do(http.MethodGet, "/v1/follows/"+target.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[FollowStatusResponse](t, rec).Following)

	// Follow, then let the program land the edge record.
	rec = a.do(http.MethodPost, "/v1/follows/"+target.String(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	edge := a.addFollow(actor, target)

	rec = a.do(http.MethodGet, "/v1/follows/"+target.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[FollowStatusResponse](t, rec).Following)

	// Unfollow removes the edge.
	rec = a.do(http.MethodDelete, "/v1/follows/"+target.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a.led.remove(edge)

	rec = a.do(http.MethodGet, "/v1/follows/"+target.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[FollowStatusResponse](t, rec).Following)

	subs := a.led.submitted()
	require.Len(t, subs, 2)
	assert.Equal(t, "follow", subs[0].Method)
	assert.Equal(t, "unfollow", subs[1].Method)
}

func TestSessionEndpoint(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[SessionResponse](t, rec).Connected)

	actor := a.connect(0xAA)

	rec = a.do(http.MethodGet, "/v1/session", nil)
	resp := decodeBody[SessionResponse](t, rec)
	assert.True(t, resp.Connected)
	assert.Equal(t, actor.String(), resp.Actor)
}

func TestHealthEndpoints(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[health.ReadinessResponse](t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, uint64(7), resp.Slot)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/bogus", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint not found")

	rec = a.do(http.MethodPut, "/v1/feed", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method not allowed")
}

func TestRateLimitedRequest(t *testing.T) {
	a := newAPI(t)

	cfg := config.DefaultConfig()
	cfg.Server.RateLimiter.Enabled = true
	cfg.Server.RateLimiter.RequestsPerSecond = 1
	cfg.Server.RateLimiter.BurstSize = 1

	met := metrics.NewMetrics()
	checker := health.NewChecker(a.led, met, zap.NewNop())
	srv := NewServer(cfg, a.eng, checker, met, zap.NewNop())
	srv.SetupRoutes()

	first := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	srv.GetHandler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}
