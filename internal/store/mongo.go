package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/models"
)

// Collection names.
const (
	postsCollection     = "posts"
	commentsCollection  = "comments"
	bookmarksCollection = "bookmarks"
	followsCollection   = "follows"
)

// DefaultListLimit caps listings when the caller gives no limit.
const DefaultListLimit = 50

// MaxListLimit is the largest page a caller may ask for.
const MaxListLimit = 200

// MongoStore handles research posts, comments, bookmarks and follows in
// MongoDB.
type MongoStore struct {
	posts     *mongo.Collection
	comments  *mongo.Collection
	bookmarks *mongo.Collection
	follows   *mongo.Collection
	now       func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		posts:     db.Collection(postsCollection),
		comments:  db.Collection(commentsCollection),
		bookmarks: db.Collection(bookmarksCollection),
		follows:   db.Collection(followsCollection),
		now:       time.Now,
	}
}

// EnsureIndexes creates the lookup indexes and the uniqueness constraints
// on bookmarks and follows.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.posts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{s.comments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: -1}}},
		}},
		{s.bookmarks, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "post_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "post_id", Value: 1}}},
		}},
		{s.follows, []mongo.IndexModel{
			{Keys: bson.D{{Key: "follower_id", Value: 1}, {Key: "following_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "following_id", Value: 1}}},
		}},
	}
	for _, spec := range specs {
		if _, err := spec.col.Indexes().CreateMany(ctx, spec.models); err != nil {
			return oops.In("mongo").With("collection", spec.col.Name()).Wrap(err)
		}
	}
	return nil
}

// ── Posts ────────────────────────────────────────────────

func (s *MongoStore) InsertPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = s.now().UTC()
	if _, err := s.posts.InsertOne(ctx, post); err != nil {
		return nil, oops.In("mongo").With("operation", "insert post").Wrap(err)
	}
	return post, nil
}

// ListPosts returns posts newest first.
func (s *MongoStore) ListPosts(ctx context.Context, f models.PostFilter) ([]models.Post, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.AuthorID != "" {
		filter["author_id"] = f.AuthorID
	}
	return s.findPosts(ctx, filter, f.Limit)
}

// SearchPosts matches q case-insensitively against title, content and
// category, newest first.
func (s *MongoStore) SearchPosts(ctx context.Context, q string, limit int64) ([]models.Post, error) {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"content": re},
		bson.M{"category": re},
	}}
	return s.findPosts(ctx, filter, limit)
}

func (s *MongoStore) findPosts(ctx context.Context, filter bson.M, limit int64) ([]models.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(clampLimit(limit))
	cur, err := s.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, oops.In("mongo").With("operation", "find posts").Wrap(err)
	}
	defer cur.Close(ctx)

	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, oops.In("mongo").With("operation", "decode posts").Wrap(err)
	}
	return posts, nil
}

func (s *MongoStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("Research post not found")
	}
	var post models.Post
	err = s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("Research post not found")
	}
	if err != nil {
		return nil, oops.In("mongo").With("operation", "get post", "id", id).Wrap(err)
	}
	return &post, nil
}

// GetPostsByIDs returns the posts that still exist among ids, keyed by id.
func (s *MongoStore) GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Post, error) {
	found := make(map[primitive.ObjectID]models.Post, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	cur, err := s.posts.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, oops.In("mongo").With("operation", "get posts by ids").Wrap(err)
	}
	defer cur.Close(ctx)

	var posts []models.Post
	if err := cur.All(ctx, &posts); err != nil {
		return nil, oops.In("mongo").With("operation", "decode posts").Wrap(err)
	}
	for _, p := range posts {
		found[p.ID] = p
	}
	return found, nil
}

// DeletePost removes a post with its comments and bookmarks.
func (s *MongoStore) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return oops.In("mongo").With("operation", "delete post", "id", id.Hex()).Wrap(err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("Research post not found")
	}
	if _, err := s.comments.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return oops.In("mongo").With("operation", "delete post comments", "id", id.Hex()).Wrap(err)
	}
	if _, err := s.bookmarks.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return oops.In("mongo").With("operation", "delete post bookmarks", "id", id.Hex()).Wrap(err)
	}
	return nil
}

// SetSummaryKey records where the post's AI summary is archived.
func (s *MongoStore) SetSummaryKey(ctx context.Context, id primitive.ObjectID, key string) error {
	res, err := s.posts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"summary_key": key}})
	if err != nil {
		return oops.In("mongo").With("operation", "set summary key", "id", id.Hex()).Wrap(err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("Research post not found")
	}
	return nil
}

// ── Comments ─────────────────────────────────────────────

func (s *MongoStore) InsertComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	c.ID = primitive.NewObjectID()
	c.CreatedAt = s.now().UTC()
	if _, err := s.comments.InsertOne(ctx, c); err != nil {
		return nil, oops.In("mongo").With("operation", "insert comment").Wrap(err)
	}
	return c, nil
}

// ListComments returns a post's comments newest first.
func (s *MongoStore) ListComments(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.comments.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, oops.In("mongo").With("operation", "list comments").Wrap(err)
	}
	defer cur.Close(ctx)

	comments := []models.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, oops.In("mongo").With("operation", "decode comments").Wrap(err)
	}
	return comments, nil
}

func (s *MongoStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("Comment not found")
	}
	var c models.Comment
	err = s.comments.FindOne(ctx, bson.M{"_id": oid}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("Comment not found")
	}
	if err != nil {
		return nil, oops.In("mongo").With("operation", "get comment", "id", id).Wrap(err)
	}
	return &c, nil
}

func (s *MongoStore) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return oops.In("mongo").With("operation", "delete comment", "id", id.Hex()).Wrap(err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("Comment not found")
	}
	return nil
}

// ── Bookmarks ────────────────────────────────────────────

func (s *MongoStore) AddBookmark(ctx context.Context, userID string, postID primitive.ObjectID) error {
	b := models.Bookmark{ID: primitive.NewObjectID(), UserID: userID, PostID: postID, CreatedAt: s.now().UTC()}
	_, err := s.bookmarks.InsertOne(ctx, b)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Duplicate("Research already saved")
	}
	if err != nil {
		return oops.In("mongo").With("operation", "add bookmark").Wrap(err)
	}
	return nil
}

func (s *MongoStore) RemoveBookmark(ctx context.Context, userID string, postID primitive.ObjectID) error {
	res, err := s.bookmarks.DeleteOne(ctx, bson.M{"user_id": userID, "post_id": postID})
	if err != nil {
		return oops.In("mongo").With("operation", "remove bookmark").Wrap(err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("Research not saved")
	}
	return nil
}

func (s *MongoStore) IsBookmarked(ctx context.Context, userID string, postID primitive.ObjectID) (bool, error) {
	n, err := s.bookmarks.CountDocuments(ctx, bson.M{"user_id": userID, "post_id": postID})
	if err != nil {
		return false, oops.In("mongo").With("operation", "check bookmark").Wrap(err)
	}
	return n > 0, nil
}

// ListBookmarks returns a user's bookmarks, most recently saved first.
func (s *MongoStore) ListBookmarks(ctx context.Context, userID string) ([]models.Bookmark, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.bookmarks.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, oops.In("mongo").With("operation", "list bookmarks").Wrap(err)
	}
	defer cur.Close(ctx)

	bookmarks := []models.Bookmark{}
	if err := cur.All(ctx, &bookmarks); err != nil {
		return nil, oops.In("mongo").With("operation", "decode bookmarks").Wrap(err)
	}
	return bookmarks, nil
}

// ── Follows ──────────────────────────────────────────────

func (s *MongoStore) Follow(ctx context.Context, followerID, followingID string) (*models.Follow, error) {
	f := &models.Follow{
		ID:          primitive.NewObjectID(),
		FollowerID:  followerID,
		FollowingID: followingID,
		CreatedAt:   s.now().UTC(),
	}
	_, err := s.follows.InsertOne(ctx, f)
	if mongo.IsDuplicateKeyError(err) {
		return nil, apperr.Duplicate("Already following this researcher")
	}
	if err != nil {
		return nil, oops.In("mongo").With("operation", "follow").Wrap(err)
	}
	return f, nil
}

// Unfollow removes the relation if it exists.
func (s *MongoStore) Unfollow(ctx context.Context, followerID, followingID string) error {
	if _, err := s.follows.DeleteOne(ctx, bson.M{"follower_id": followerID, "following_id": followingID}); err != nil {
		return oops.In("mongo").With("operation", "unfollow").Wrap(err)
	}
	return nil
}

// Following lists the relations where userID is the follower.
func (s *MongoStore) Following(ctx context.Context, userID string) ([]models.Follow, error) {
	return s.findFollows(ctx, bson.M{"follower_id": userID})
}

// Followers lists the relations where userID is followed.
func (s *MongoStore) Followers(ctx context.Context, userID string) ([]models.Follow, error) {
	return s.findFollows(ctx, bson.M{"following_id": userID})
}

// FollowStatus reports, for each id, whether followerID follows it.
func (s *MongoStore) FollowStatus(ctx context.Context, followerID string, ids []string) (map[string]bool, error) {
	status := make(map[string]bool, len(ids))
	for _, id := range ids {
		status[id] = false
	}
	if len(ids) == 0 {
		return status, nil
	}

	follows, err := s.findFollows(ctx, bson.M{"follower_id": followerID, "following_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, f := range follows {
		status[f.FollowingID] = true
	}
	return status, nil
}

func (s *MongoStore) findFollows(ctx context.Context, filter bson.M) ([]models.Follow, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.follows.Find(ctx, filter, opts)
	if err != nil {
		return nil, oops.In("mongo").With("operation", "find follows").Wrap(err)
	}
	defer cur.Close(ctx)

	follows := []models.Follow{}
	if err := cur.All(ctx, &follows); err != nil {
		return nil, oops.In("mongo").With("operation", "decode follows").Wrap(err)
	}
	return follows, nil
}

func clampLimit(limit int64) int64 {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
