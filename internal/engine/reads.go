package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/codec"
	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/ledger"
	"github.com/amitsaini144/solagram/internal/model"
	"github.com/amitsaini144/solagram/internal/view"
)

// ProfileResult carries a resolved profile view. Found is false when no
// profile record exists for the identity, a valid empty state.
type ProfileResult struct {
	View  model.ProfileView
	Found bool
}

// Feed returns all posts on the ledger, newest first, decorated with
// author handles. Concurrent callers share one fetch; a fresh snapshot is
// served without touching the node.
func (e *Engine) Feed(ctx context.Context) ([]model.PostView, error) {
	return fetchCollection(ctx, e, "feed", feedKey(), e.fetchFeed)
}

func (e *Engine) fetchFeed(ctx context.Context) ([]model.PostView, error) {
	recs, err := e.client.ScanRecords(ctx, []ledger.ScanFilter{
		{Offset: 0, Bytes: codec.PostDiscriminator[:]},
	})
	if err != nil {
		return nil, err
	}
	return e.buildPostViews(ctx, feedKey(), recs)
}

// PostsByCreator returns one identity's posts, newest first.
func (e *Engine) PostsByCreator(ctx context.Context, creator model.Identity) ([]model.PostView, error) {
	if creator.IsZero() {
		return nil, xerrors.NewInput("creator identity is empty")
	}
	key := postsKey(creator)
	return fetchCollection(ctx, e, "posts", key, func(ctx context.Context) ([]model.PostView, error) {
		recs, err := e.client.ScanRecords(ctx, []ledger.ScanFilter{
			{Offset: 0, Bytes: codec.PostDiscriminator[:]},
			{Offset: codec.AuthorityOffset, Bytes: creator.Bytes()},
		})
		if err != nil {
			return nil, err
		}
		return e.buildPostViews(ctx, key, recs)
	})
}

func (e *Engine) buildPostViews(ctx context.Context, key string, recs []*ledger.Record) ([]model.PostView, error) {
	posts := e.decodePosts(recs)
	authors, err := e.resolveAuthors(ctx, key, authoritiesOfPosts(posts))
	if err != nil {
		return nil, err
	}
	for addr := range posts {
		e.watchAddr(addr, key)
	}
	views := view.MergePosts(posts, authors)
	e.logger.Debug("posts merged",
		zap.String("key", key),
		zap.Int("posts", len(views)),
		zap.Int("authors", len(authors)))
	return views, nil
}

// Profile resolves an identity's profile. An absent profile record returns
// Found=false with no error. With a wallet connected the view carries the
// actor's follow relationship, resolved in the same round trip.
func (e *Engine) Profile(ctx context.Context, owner model.Identity) (ProfileResult, error) {
	if owner.IsZero() {
		return ProfileResult{}, xerrors.NewInput("owner identity is empty")
	}
	key := profileKey(owner)
	return fetchCollection(ctx, e, "profile", key, func(ctx context.Context) (ProfileResult, error) {
		return e.fetchProfile(ctx, key, owner)
	})
}

func (e *Engine) fetchProfile(ctx context.Context, key string, owner model.Identity) (ProfileResult, error) {
	profAddr := e.deriver.ProfileAddress(owner)

	var followAddr model.Address
	actor, hasActor := e.Actor()
	withFollow := hasActor && actor != owner
	addrs := []model.Address{profAddr}
	if withFollow {
		followAddr = e.deriver.FollowAddress(actor, owner)
		addrs = append(addrs, followAddr)
	}

	raw, err := e.planner.FetchRaw(ctx, addrs)
	if err != nil {
		return ProfileResult{}, err
	}

	e.watchProfile(profAddr, owner, key)
	if withFollow {
		e.watchAddr(followAddr, key)
	}

	rec, ok := raw[profAddr]
	if !ok {
		e.profiles.Add(owner, profileEntry{absent: true})
		return ProfileResult{}, nil
	}

	prof, err := codec.DecodeProfile(rec.Payload)
	if err != nil {
		e.met.RecordDecodeFailure(codec.KindProfile)
		e.logger.Warn("undecodable profile record treated as absent",
			zap.String("owner", owner.Short()),
			zap.Error(err))
		e.profiles.Add(owner, profileEntry{absent: true})
		return ProfileResult{}, nil
	}
	e.profiles.Add(owner, profileEntry{profile: prof})

	following := false
	if fr, ok := raw[followAddr]; withFollow && ok {
		if _, err := codec.DecodeFollowEdge(fr.Payload); err != nil {
			e.met.RecordDecodeFailure(codec.KindFollow)
		} else {
			following = true
		}
	}

	return ProfileResult{
		View:  view.MergeProfile(profAddr, prof, followAddr, following),
		Found: true,
	}, nil
}

// Comments returns a post's comments oldest first, decorated with
// commenter handles.
func (e *Engine) Comments(ctx context.Context, post model.Address) ([]model.CommentView, error) {
	if post.IsZero() {
		return nil, xerrors.NewInput("post address is empty")
	}
	key := commentsKey(post)
	return fetchCollection(ctx, e, "comments", key, func(ctx context.Context) ([]model.CommentView, error) {
		recs, err := e.client.ScanRecords(ctx, []ledger.ScanFilter{
			{Offset: 0, Bytes: codec.CommentDiscriminator[:]},
			{Offset: codec.CommentPostOffset, Bytes: post.Bytes()},
		})
		if err != nil {
			return nil, err
		}

		comments := make(map[model.Address]model.Comment, len(recs))
		for _, rec := range recs {
			c, err := codec.DecodeComment(rec.Payload)
			if err != nil {
				e.met.RecordDecodeFailure(codec.KindComment)
				e.logger.Warn("dropping undecodable comment record",
					zap.String("address", rec.Address.String()),
					zap.Error(err))
				continue
			}
			comments[rec.Address] = c
		}

		ids := make([]model.Identity, 0, len(comments))
		for _, c := range comments {
			ids = append(ids, c.Authority)
		}
		authors, err := e.resolveAuthors(ctx, key, ids)
		if err != nil {
			return nil, err
		}

		e.watchAddr(post, key)
		for addr := range comments {
			e.watchAddr(addr, key)
		}
		return view.MergeComments(comments, authors), nil
	})
}

// FollowStatus reports whether the connected actor follows target.
func (e *Engine) FollowStatus(ctx context.Context, target model.Identity) (bool, error) {
	if target.IsZero() {
		return false, xerrors.NewInput("target identity is empty")
	}
	_, actor, err := e.requireWallet()
	if err != nil {
		return false, err
	}

	key := followKey(target)
	return fetchCollection(ctx, e, "follow", key, func(ctx context.Context) (bool, error) {
		followAddr := e.deriver.FollowAddress(actor, target)
		e.watchAddr(followAddr, key)

		rec, err := e.client.GetRecord(ctx, followAddr)
		if xerrors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if _, err := codec.DecodeFollowEdge(rec.Payload); err != nil {
			e.met.RecordDecodeFailure(codec.KindFollow)
			return false, nil
		}
		return true, nil
	})
}
