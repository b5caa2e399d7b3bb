package server

import "github.com/amitsaini144/solagram/internal/model"

// PostJSON is the wire form of a decorated post view.
type PostJSON struct {
	Address       string `json:"address"`
	Author        string `json:"author"`
	AuthorHandle  string `json:"author_handle"`
	AuthorMissing bool   `json:"author_missing,omitempty"`
	Content       string `json:"content"`
	Likes         uint64 `json:"likes"`
	Comments      uint64 `json:"comments"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// CommentJSON is the wire form of a decorated comment view.
type CommentJSON struct {
	Address       string `json:"address"`
	Author        string `json:"author"`
	AuthorHandle  string `json:"author_handle"`
	AuthorMissing bool   `json:"author_missing,omitempty"`
	Post          string `json:"post"`
	Content       string `json:"content"`
	CreatedAt     int64  `json:"created_at"`
}

// ProfileJSON is the wire form of a decorated profile view.
type ProfileJSON struct {
	Address       string `json:"address"`
	Authority     string `json:"authority"`
	Handle        string `json:"handle"`
	Bio           string `json:"bio,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Followers     uint64 `json:"followers"`
	Following     uint64 `json:"following"`
	Posts         uint64 `json:"posts"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	IsFollowing   bool   `json:"is_following"`
	FollowAddress string `json:"follow_address"`
}

// PostListResponse wraps an ordered list of posts.
type PostListResponse struct {
	Posts []PostJSON `json:"posts"`
	Count int        `json:"count"`
}

// CommentListResponse wraps an ordered list of comments.
type CommentListResponse struct {
	Comments []CommentJSON `json:"comments"`
	Count    int           `json:"count"`
}

// WriteResponse reports a submitted instruction.
type WriteResponse struct {
	Status  string `json:"status"`
	Address string `json:"address,omitempty"`
	Tx      string `json:"tx"`
}

// FollowStatusResponse reports whether the actor follows a target.
type FollowStatusResponse struct {
	Target    string `json:"target"`
	Following bool   `json:"following"`
}

// SessionResponse reports the connected actor, if any.
type SessionResponse struct {
	Connected bool   `json:"connected"`
	Actor     string `json:"actor,omitempty"`
}

func toPostJSON(v model.PostView) PostJSON {
	return PostJSON{
		Address:       v.Addr.String(),
		Author:        v.Post.Authority.String(),
		AuthorHandle:  v.AuthorHandle,
		AuthorMissing: v.AuthorMissing,
		Content:       v.Post.Content,
		Likes:         v.Post.Likes,
		Comments:      v.Post.Comments,
		CreatedAt:     v.Post.CreatedAt,
		UpdatedAt:     v.Post.UpdatedAt,
	}
}

func toPostList(views []model.PostView) PostListResponse {
	posts := make([]PostJSON, 0, len(views))
	for _, v := range views {
		posts = append(posts, toPostJSON(v))
	}
	return PostListResponse{Posts: posts, Count: len(posts)}
}

func toCommentJSON(v model.CommentView) CommentJSON {
	return CommentJSON{
		Address:       v.Addr.String(),
		Author:        v.Comment.Authority.String(),
		AuthorHandle:  v.AuthorHandle,
		AuthorMissing: v.AuthorMissing,
		Post:          v.Comment.Post.String(),
		Content:       v.Comment.Content,
		CreatedAt:     v.Comment.CreatedAt,
	}
}

func toCommentList(views []model.CommentView) CommentListResponse {
	comments := make([]CommentJSON, 0, len(views))
	for _, v := range views {
		comments = append(comments, toCommentJSON(v))
	}
	return CommentListResponse{Comments: comments, Count: len(comments)}
}

func toProfileJSON(v model.ProfileView) ProfileJSON {
	return ProfileJSON{
		Address:       v.Addr.String(),
		Authority:     v.Profile.Authority.String(),
		Handle:        v.Profile.Handle,
		Bio:           v.Profile.Bio,
		AvatarURL:     v.Profile.AvatarURL,
		Followers:     v.Profile.Followers,
		Following:     v.Profile.Following,
		Posts:         v.Profile.Posts,
		CreatedAt:     v.Profile.CreatedAt,
		UpdatedAt:     v.Profile.UpdatedAt,
		IsFollowing:   v.IsFollowing,
		FollowAddress: v.FollowAddr.String(),
	}
}
