package model

// Profile is a snapshot of a user profile record. Counters and timestamps
// are ledger-assigned; the local copy is never the source of truth.
type Profile struct {
	Authority Identity
	Handle    string
	Bio       string
	AvatarURL string
	Followers uint64
	Following uint64
	Posts     uint64
	CreatedAt int64
	UpdatedAt int64
}

// Post is a snapshot of a post record.
type Post struct {
	Authority Identity
	Content   string
	Likes     uint64
	Comments  uint64
	CreatedAt int64
	UpdatedAt int64
}

// Comment is a snapshot of a comment record attached to a post.
type Comment struct {
	Authority Identity
	Post      Address
	Content   string
	CreatedAt int64
}

// FollowEdge is a snapshot of a directed follow relationship. The edge from
// A to B lives at a different address than the edge from B to A.
type FollowEdge struct {
	Follower  Identity
	Target    Identity
	CreatedAt int64
}
