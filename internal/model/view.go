package model

// PostView is a post record decorated with locally-joined author fields.
// Views exist only in memory and are never written back to the ledger.
type PostView struct {
	Post Post

	Addr Address
	// AuthorHandle is the creator's profile handle, or the truncated
	// identity placeholder when the profile is absent or undecodable.
	AuthorHandle  string
	AuthorMissing bool
}

// CommentView is a comment record decorated with commenter fields.
type CommentView struct {
	Comment Comment

	Addr          Address
	AuthorHandle  string
	AuthorMissing bool
}

// ProfileView is a profile record decorated with the requesting actor's
// follow relationship to it.
type ProfileView struct {
	Profile Profile

	Addr Address
	// IsFollowing reports whether the active actor holds a follow edge to
	// this profile's authority. Always false when no actor is connected.
	IsFollowing bool
	// FollowAddr is the derived address of that follow edge (set even when
	// the edge does not exist, so the write path reuses it).
	FollowAddr Address
}
