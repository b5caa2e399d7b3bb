// Package engine implements the synchronization core: coalesced reads that
// land in the actor-keyed state store, author resolution through a session
// profile cache, and signed write submission with local invalidation.
package engine

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/batch"
	"github.com/amitsaini144/solagram/internal/coalesce"
	"github.com/amitsaini144/solagram/internal/codec"
	"github.com/amitsaini144/solagram/internal/derive"
	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/metrics"
	"github.com/amitsaini144/solagram/internal/model"
	"github.com/amitsaini144/solagram/internal/state"
	"github.com/amitsaini144/solagram/internal/wallet"
)

// Config holds engine tunables.
type Config struct {
	MaxBatchSize     int           // addresses per multi-record read
	ProfileCacheSize int           // session profile cache entries
	MaxAge           time.Duration // populated slots older than this refetch on read, 0 disables
}

// profileEntry is a session cache slot. Absent profiles and undecodable
// profile records are cached negatively so they are not refetched every
// refresh.
type profileEntry struct {
	profile model.Profile
	absent  bool
}

// Engine is the synchronization core. All methods are safe for concurrent
// use.
type Engine struct {
	deriver *derive.Deriver
	client  ledger.RecordClient
	planner *batch.Planner
	guard   *coalesce.Guard
	store   *state.Store
	met     *metrics.Metrics
	logger  *zap.Logger

	maxAge time.Duration

	mu     sync.RWMutex
	wallet wallet.Wallet
	// watch maps record addresses to the state keys whose views contain
	// them, so a change notification invalidates exactly the affected
	// views. owners maps derived profile addresses back to identities for
	// session cache eviction.
	watch  map[model.Address]map[string]struct{}
	owners map[model.Address]model.Identity

	profiles *lru.Cache[model.Identity, profileEntry]
}

// New creates an engine talking to client for the program served by
// deriver.
func New(deriver *derive.Deriver, client ledger.RecordClient, cfg Config, met *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	cacheSize := cfg.ProfileCacheSize
	if cacheSize <= 0 {
		cacheSize = 512
	}
	profiles, err := lru.New[model.Identity, profileEntry](cacheSize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		deriver:  deriver,
		client:   client,
		planner:  batch.NewPlanner(client, cfg.MaxBatchSize, met, logger),
		guard:    coalesce.NewGuard(),
		store:    state.NewStore(logger),
		met:      met,
		logger:   logger,
		maxAge:   cfg.MaxAge,
		watch:    make(map[model.Address]map[string]struct{}),
		owners:   make(map[model.Address]model.Identity),
		profiles: profiles,
	}, nil
}

// Connect binds a wallet. Switching to a different identity clears all
// cached state before anything is fetched for the new actor.
func (e *Engine) Connect(w wallet.Wallet) {
	e.mu.Lock()
	e.wallet = w
	e.mu.Unlock()

	if e.store.SetActor(w.Identity()) {
		e.resetSession()
		e.met.RecordInvalidation("actor_switch")
	}
}

// Disconnect unbinds the wallet and drops every cached view.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	e.wallet = nil
	e.mu.Unlock()

	e.store.ClearActor()
	e.resetSession()
	e.met.RecordInvalidation("disconnect")
}

// Actor returns the connected wallet identity, if any.
func (e *Engine) Actor() (model.Identity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.wallet == nil {
		return model.Identity{}, false
	}
	return e.wallet.Identity(), true
}

func (e *Engine) requireWallet() (wallet.Wallet, model.Identity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.wallet == nil {
		return nil, model.Identity{}, xerrors.NewInput("no wallet connected")
	}
	return e.wallet, e.wallet.Identity(), nil
}

func (e *Engine) resetSession() {
	e.mu.Lock()
	e.watch = make(map[model.Address]map[string]struct{})
	e.owners = make(map[model.Address]model.Identity)
	e.mu.Unlock()
	e.profiles.Purge()
}

// State keys. They double as coalescing keys so concurrent reads of the
// same view share one flight.
func feedKey() string                        { return "feed" }
func postsKey(owner model.Identity) string   { return coalesce.Key("posts", owner.String()) }
func profileKey(owner model.Identity) string { return coalesce.Key("profile", owner.String()) }
func commentsKey(post model.Address) string  { return coalesce.Key("comments", post.String()) }
func followKey(target model.Identity) string { return coalesce.Key("follow", target.String()) }

// watchAddr records that the view under key contains the record at addr.
func (e *Engine) watchAddr(addr model.Address, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys, ok := e.watch[addr]
	if !ok {
		keys = make(map[string]struct{})
		e.watch[addr] = keys
	}
	keys[key] = struct{}{}
}

// watchProfile additionally remembers the owner so the session cache entry
// can be evicted when the profile record changes.
func (e *Engine) watchProfile(addr model.Address, owner model.Identity, key string) {
	e.watchAddr(addr, key)
	e.mu.Lock()
	e.owners[addr] = owner
	e.mu.Unlock()
}

// HandleNotification reacts to a record change pushed by the node: the
// views containing the record are marked stale and, for profile records,
// the session cache entry is dropped. The next read refetches.
func (e *Engine) HandleNotification(n ledger.Notification) {
	e.invalidateRecord(n.Address, "subscription")
}

func (e *Engine) invalidateRecord(addr model.Address, source string) {
	e.mu.RLock()
	keys := make([]string, 0, len(e.watch[addr]))
	for k := range e.watch[addr] {
		keys = append(keys, k)
	}
	owner, isProfile := e.owners[addr]
	e.mu.RUnlock()

	if isProfile {
		e.profiles.Remove(owner)
	}
	for _, key := range keys {
		e.store.Invalidate(key)
		e.guard.Forget(key)
		e.met.RecordInvalidation(source)
	}
	if len(keys) > 0 || isProfile {
		e.logger.Debug("record invalidated",
			zap.String("address", addr.String()),
			zap.Int("views", len(keys)),
			zap.String("source", source))
	}
	e.publishStateGauges()
}

func (e *Engine) invalidateKeys(source string, keys ...string) {
	for _, key := range keys {
		e.store.Invalidate(key)
		e.guard.Forget(key)
		e.met.RecordInvalidation(source)
	}
	e.publishStateGauges()
}

func (e *Engine) publishStateGauges() {
	counts := e.store.StatusCounts()
	for _, st := range []state.Status{state.StatusEmpty, state.StatusFetching, state.StatusPopulated, state.StatusStale} {
		e.met.SetStateSlots(st.String(), counts[st])
	}
}

// fetchCollection is the shared read pipeline: serve fresh snapshots from
// the store, otherwise run fn once per key across concurrent callers and
// apply the result under the begin token. On failure the last good value,
// when one exists, is returned alongside the error.
func fetchCollection[T any](ctx context.Context, e *Engine, collection, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if snap, ok := e.store.Get(key); ok && !e.store.NeedsFetch(key, e.maxAge) {
		if v, ok := state.ValueOf[T](snap); ok {
			return v, nil
		}
	}

	tok := e.store.Begin(key)
	v, shared, err := coalesce.Do(ctx, e.guard, key, func(fctx context.Context) (T, error) {
		start := time.Now()
		v, err := fn(fctx)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.met.RecordFetch(collection, outcome, time.Since(start))
		return v, err
	})
	if shared {
		e.met.RecordCoalesceJoin()
	}
	if err != nil {
		e.store.Fail(key, tok, err)
		if snap, ok := e.store.Get(key); ok {
			if stale, ok := state.ValueOf[T](snap); ok {
				return stale, err
			}
		}
		return zero, err
	}

	e.store.Complete(key, tok, v)
	e.publishStateGauges()
	return v, nil
}

// resolveAuthors returns profiles for the given identities, serving from
// the session cache and batch-fetching the rest in one multi-read per
// chunk. Absent and undecodable profiles are cached negatively and simply
// missing from the result.
func (e *Engine) resolveAuthors(ctx context.Context, key string, ids []model.Identity) (map[model.Identity]model.Profile, error) {
	out := make(map[model.Identity]model.Profile, len(ids))
	seen := make(map[model.Identity]struct{}, len(ids))
	var missing []model.Identity

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if ent, ok := e.profiles.Get(id); ok {
			if !ent.absent {
				out[id] = ent.profile
			}
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	addrs := make([]model.Address, len(missing))
	for i, id := range missing {
		addrs[i] = e.deriver.ProfileAddress(id)
	}

	fetched, failures, err := batch.Fetch(ctx, e.planner, addrs, codec.DecodeProfile)
	if err != nil {
		return nil, err
	}
	for range failures {
		e.met.RecordDecodeFailure(codec.KindProfile)
	}

	for i, id := range missing {
		e.watchProfile(addrs[i], id, key)
		if p, ok := fetched[addrs[i]]; ok {
			out[id] = p
			e.profiles.Add(id, profileEntry{profile: p})
			continue
		}
		// Absent or undecodable: negative entry for the session.
		e.profiles.Add(id, profileEntry{absent: true})
	}
	return out, nil
}

// decodePosts decodes scanned post records, dropping undecodable payloads.
func (e *Engine) decodePosts(recs []*ledger.Record) map[model.Address]model.Post {
	posts := make(map[model.Address]model.Post, len(recs))
	for _, rec := range recs {
		p, err := codec.DecodePost(rec.Payload)
		if err != nil {
			e.met.RecordDecodeFailure(codec.KindPost)
			e.logger.Warn("dropping undecodable post record",
				zap.String("address", rec.Address.String()),
				zap.Error(err))
			continue
		}
		posts[rec.Address] = p
	}
	return posts
}

func authoritiesOfPosts(posts map[model.Address]model.Post) []model.Identity {
	ids := make([]model.Identity, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.Authority)
	}
	return ids
}
