// Package view assembles decorated read models from raw records. Records
// arrive keyed by address; the merger joins them with author profiles and
// produces deterministically ordered slices ready for rendering.
package view

import (
	"sort"

	"github.com/amitsaini144/solagram/internal/model"
)

// FallbackHandle is the author label used when the profile record is
// absent or undecodable. Views stay renderable without it.
func FallbackHandle(id model.Identity) string {
	return id.Short()
}

// MergePosts joins posts with their authors' profiles and orders them
// newest first. Ties on creation time break on ascending address so the
// order is stable across refreshes.
func MergePosts(posts map[model.Address]model.Post, authors map[model.Identity]model.Profile) []model.PostView {
	out := make([]model.PostView, 0, len(posts))
	for addr, p := range posts {
		out = append(out, decoratePost(addr, p, authors))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Post.CreatedAt != out[j].Post.CreatedAt {
			return out[i].Post.CreatedAt > out[j].Post.CreatedAt
		}
		return out[i].Addr.Less(out[j].Addr)
	})
	return out
}

// MergeComments joins comments with their authors' profiles and orders
// them oldest first, reading order for a thread. Ties break on ascending
// address.
func MergeComments(comments map[model.Address]model.Comment, authors map[model.Identity]model.Profile) []model.CommentView {
	out := make([]model.CommentView, 0, len(comments))
	for addr, c := range comments {
		v := model.CommentView{Comment: c, Addr: addr}
		v.AuthorHandle, v.AuthorMissing = authorLabel(c.Authority, authors)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Comment.CreatedAt != out[j].Comment.CreatedAt {
			return out[i].Comment.CreatedAt < out[j].Comment.CreatedAt
		}
		return out[i].Addr.Less(out[j].Addr)
	})
	return out
}

// MergeProfile decorates a profile with the viewer's follow relationship.
func MergeProfile(addr model.Address, p model.Profile, followAddr model.Address, following bool) model.ProfileView {
	return model.ProfileView{
		Profile:     p,
		Addr:        addr,
		IsFollowing: following,
		FollowAddr:  followAddr,
	}
}

func decoratePost(addr model.Address, p model.Post, authors map[model.Identity]model.Profile) model.PostView {
	v := model.PostView{Post: p, Addr: addr}
	v.AuthorHandle, v.AuthorMissing = authorLabel(p.Authority, authors)
	return v
}

func authorLabel(id model.Identity, authors map[model.Identity]model.Profile) (string, bool) {
	if prof, ok := authors[id]; ok && prof.Handle != "" {
		return prof.Handle, false
	}
	return FallbackHandle(id), true
}
