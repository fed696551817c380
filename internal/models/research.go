package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a research post stored in MongoDB.
type Post struct {
	ID             primitive.ObjectID `json:"id"                        bson:"_id,omitempty"`
	AuthorID       string             `json:"author_id"                 bson:"author_id"`
	AuthorUsername string             `json:"author_username"           bson:"author_username"`
	Title          string             `json:"title"                     bson:"title"`
	Content        string             `json:"content"                   bson:"content"`
	Category       string             `json:"category"                  bson:"category"`
	SummaryKey     string             `json:"summary_key,omitempty"     bson:"summary_key,omitempty"`
	CreatedAt      time.Time          `json:"created_at"                bson:"created_at"`
}

// Comment is a reply to a post.
type Comment struct {
	ID             primitive.ObjectID `json:"id"              bson:"_id,omitempty"`
	PostID         primitive.ObjectID `json:"post_id"         bson:"post_id"`
	AuthorID       string             `json:"author_id"       bson:"author_id"`
	AuthorUsername string             `json:"author_username" bson:"author_username"`
	Body           string             `json:"body"            bson:"body"`
	CreatedAt      time.Time          `json:"created_at"      bson:"created_at"`
}

// Bookmark records that a user saved a post.
type Bookmark struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	UserID    string             `json:"user_id"    bson:"user_id"`
	PostID    primitive.ObjectID `json:"post_id"    bson:"post_id"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// Follow records that FollowerID follows FollowingID.
type Follow struct {
	ID          primitive.ObjectID `json:"id"           bson:"_id,omitempty"`
	FollowerID  string             `json:"follower_id"  bson:"follower_id"`
	FollowingID string             `json:"following_id" bson:"following_id"`
	CreatedAt   time.Time          `json:"created_at"   bson:"created_at"`
}

// FollowEntry is a follow relation with the profile of the other side: the
// followed user in a following list, the follower in a followers list. User
// is nil when that account no longer exists.
type FollowEntry struct {
	Follow
	User *Profile `json:"user,omitempty"`
}

// PostFilter narrows a post listing.
type PostFilter struct {
	Category string
	AuthorID string
	Limit    int64
}

// CreatePostRequest is the JSON body for POST /api/research.
type CreatePostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// CreateCommentRequest is the JSON body for POST /api/research/{id}/comments.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// AnalyzeRequest is the JSON body for POST /api/analyze-research.
type AnalyzeRequest struct {
	Content string `json:"content"`
}

// AskRequest is the JSON body for POST /api/research/{id}/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// FollowRequest is the JSON body for POST /api/follow.
type FollowRequest struct {
	FollowingID string `json:"followingId"`
}

// FollowStatusRequest is the JSON body for POST /api/follow/status.
type FollowStatusRequest struct {
	ResearcherIDs []string `json:"researcherIds"`
}
