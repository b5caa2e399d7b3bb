package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/coalesce"
	"github.com/amitsaini144/solagram/internal/codec"
	"github.com/amitsaini144/solagram/internal/derive"
	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/model"
	"github.com/amitsaini144/solagram/internal/wallet"
)

// CreatePost submits a new post and returns its derived address. The same
// content from the same actor derives the same address, so repeating a
// create is rejected by the program rather than duplicated.
func (e *Engine) CreatePost(ctx context.Context, content string) (model.Address, ledger.TxID, error) {
	w, actor, err := e.requireWallet()
	if err != nil {
		return model.Address{}, "", err
	}
	if strings.TrimSpace(content) == "" {
		return model.Address{}, "", xerrors.NewInput("post content is empty")
	}

	postAddr := e.deriver.PostAddress(actor, derive.DigestContent(content))
	profAddr := e.deriver.ProfileAddress(actor)

	txid, err := e.submit(ctx, w, ledger.Instruction{
		Program:  e.deriver.Program(),
		Method:   "create_post",
		Args:     codec.AppendString(nil, content),
		Accounts: []model.Address{postAddr, profAddr},
		Actor:    actor,
	})
	if err != nil {
		return model.Address{}, "", err
	}

	e.profiles.Remove(actor)
	e.invalidateKeys("write", feedKey(), postsKey(actor), profileKey(actor))
	return postAddr, txid, nil
}

// CreateComment submits a comment on a post and returns its derived
// address. The post address participates in derivation, so the same text
// on two posts stays distinct.
func (e *Engine) CreateComment(ctx context.Context, post model.Address, content string) (model.Address, ledger.TxID, error) {
	w, actor, err := e.requireWallet()
	if err != nil {
		return model.Address{}, "", err
	}
	if post.IsZero() {
		return model.Address{}, "", xerrors.NewInput("post address is empty")
	}
	if strings.TrimSpace(content) == "" {
		return model.Address{}, "", xerrors.NewInput("comment content is empty")
	}

	commentAddr := e.deriver.CommentAddress(actor, post, derive.DigestContent(content))

	txid, err := e.submit(ctx, w, ledger.Instruction{
		Program:  e.deriver.Program(),
		Method:   "create_comment",
		Args:     codec.AppendString(nil, content),
		Accounts: []model.Address{commentAddr, post},
		Actor:    actor,
	})
	if err != nil {
		return model.Address{}, "", err
	}

	// The post's comment counter changed along with the thread.
	e.invalidateRecord(post, "write")
	e.invalidateKeys("write", commentsKey(post))
	return commentAddr, txid, nil
}

// UpsertProfile creates or updates the actor's profile record.
func (e *Engine) UpsertProfile(ctx context.Context, handle, bio, avatarURL string) (ledger.TxID, error) {
	w, actor, err := e.requireWallet()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(handle) == "" {
		return "", xerrors.NewInput("handle is empty")
	}

	args := codec.AppendString(nil, handle)
	args = codec.AppendString(args, bio)
	args = codec.AppendString(args, avatarURL)

	txid, err := e.submit(ctx, w, ledger.Instruction{
		Program:  e.deriver.Program(),
		Method:   "upsert_profile",
		Args:     args,
		Accounts: []model.Address{e.deriver.ProfileAddress(actor)},
		Actor:    actor,
	})
	if err != nil {
		return "", err
	}

	e.profiles.Remove(actor)
	// Views label posts with the handle, refresh them too.
	e.invalidateKeys("write", profileKey(actor), feedKey(), postsKey(actor))
	return txid, nil
}

// Follow creates the actor→target follow edge. Following yourself or an
// already-followed identity is rejected by the program.
func (e *Engine) Follow(ctx context.Context, target model.Identity) (ledger.TxID, error) {
	return e.submitFollowEdge(ctx, "follow", target)
}

// Unfollow removes the actor→target follow edge.
func (e *Engine) Unfollow(ctx context.Context, target model.Identity) (ledger.TxID, error) {
	return e.submitFollowEdge(ctx, "unfollow", target)
}

func (e *Engine) submitFollowEdge(ctx context.Context, method string, target model.Identity) (ledger.TxID, error) {
	w, actor, err := e.requireWallet()
	if err != nil {
		return "", err
	}
	if target.IsZero() {
		return "", xerrors.NewInput("target identity is empty")
	}

	txid, err := e.submit(ctx, w, ledger.Instruction{
		Program: e.deriver.Program(),
		Method:  method,
		Accounts: []model.Address{
			e.deriver.FollowAddress(actor, target),
			e.deriver.ProfileAddress(actor),
			e.deriver.ProfileAddress(target),
		},
		Actor: actor,
	})
	if err != nil {
		return "", err
	}

	// Follower counters changed on both profiles.
	e.profiles.Remove(actor)
	e.profiles.Remove(target)
	e.invalidateKeys("write", followKey(target), profileKey(actor), profileKey(target))
	return txid, nil
}

// LikePost bumps a post's reaction counter on the ledger.
func (e *Engine) LikePost(ctx context.Context, post model.Address) (ledger.TxID, error) {
	w, actor, err := e.requireWallet()
	if err != nil {
		return "", err
	}
	if post.IsZero() {
		return "", xerrors.NewInput("post address is empty")
	}

	txid, err := e.submit(ctx, w, ledger.Instruction{
		Program:  e.deriver.Program(),
		Method:   "like_post",
		Accounts: []model.Address{post},
		Actor:    actor,
	})
	if err != nil {
		return "", err
	}

	e.invalidateRecord(post, "write")
	return txid, nil
}

// DeletePost removes the actor's post. Views observe the removal on their
// next fetch.
func (e *Engine) DeletePost(ctx context.Context, post model.Address) (ledger.TxID, error) {
	w, actor, err := e.requireWallet()
	if err != nil {
		return "", err
	}
	if post.IsZero() {
		return "", xerrors.NewInput("post address is empty")
	}

	txid, err := e.submit(ctx, w, ledger.Instruction{
		Program:  e.deriver.Program(),
		Method:   "delete_post",
		Accounts: []model.Address{post, e.deriver.ProfileAddress(actor)},
		Actor:    actor,
	})
	if err != nil {
		return "", err
	}

	e.profiles.Remove(actor)
	e.invalidateRecord(post, "write")
	e.invalidateKeys("write", feedKey(), postsKey(actor), profileKey(actor))
	return txid, nil
}

// submit signs and sends one instruction. Identical concurrent submissions
// (same method and target record) are dropped instead of repeated; the
// duplicate caller gets an InputError. Rejections come back mapped through
// the program's error-code table with local state untouched.
func (e *Engine) submit(ctx context.Context, w wallet.Wallet, in ledger.Instruction) (ledger.TxID, error) {
	sig, err := w.Sign(in.SigningBytes())
	if err != nil {
		return "", fmt.Errorf("sign %s instruction: %w", in.Method, err)
	}
	in.Signature = sig

	key := coalesce.Key("submit", in.Method, in.Accounts[0].String())
	txid, err := coalesce.TryDo(ctx, e.guard, key, func(ctx context.Context) (ledger.TxID, error) {
		return e.client.SubmitInstruction(ctx, in)
	})
	if errors.Is(err, coalesce.ErrInFlight) {
		e.met.RecordWrite(in.Method, "duplicate")
		return "", xerrors.NewInput("an identical %s is already in flight", in.Method)
	}
	if err != nil {
		outcome := "error"
		if _, rejected := xerrors.RejectedCode(err); rejected {
			outcome = "rejected"
		}
		e.met.RecordWrite(in.Method, outcome)
		e.logger.Warn("instruction failed",
			zap.String("method", in.Method),
			zap.Error(err))
		return "", err
	}

	e.met.RecordWrite(in.Method, "ok")
	e.logger.Info("instruction submitted",
		zap.String("method", in.Method),
		zap.String("txid", string(txid)),
		zap.String("actor", in.Actor.Short()))
	return txid, nil
}
