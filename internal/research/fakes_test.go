package research

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	clock     time.Time
	posts     map[primitive.ObjectID]models.Post
	comments  map[primitive.ObjectID]models.Comment
	bookmarks []models.Bookmark

	setSummaryErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		posts:    map[primitive.ObjectID]models.Post{},
		comments: map[primitive.ObjectID]models.Comment{},
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) InsertPost(_ context.Context, post *models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = s.tick()
	s.posts[post.ID] = *post
	return post, nil
}

func (s *fakeStore) ListPosts(_ context.Context, f models.PostFilter) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool {
		return (f.Category == "" || p.Category == f.Category) && (f.AuthorID == "" || p.AuthorID == f.AuthorID)
	}), nil
}

func (s *fakeStore) SearchPosts(_ context.Context, q string, _ int64) ([]models.Post, error) {
	q = strings.ToLower(q)
	return s.filter(func(p models.Post) bool {
		return strings.Contains(strings.ToLower(p.Title+" "+p.Content+" "+p.Category), q)
	}), nil
}

func (s *fakeStore) filter(keep func(models.Post) bool) []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Post
	for _, p := range s.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("Research post not found")
	}
	p, ok := s.posts[oid]
	if !ok {
		return nil, apperr.NotFound("Research post not found")
	}
	return &p, nil
}

func (s *fakeStore) GetPostsByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := map[primitive.ObjectID]models.Post{}
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (s *fakeStore) DeletePost(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return apperr.NotFound("Research post not found")
	}
	delete(s.posts, id)
	return nil
}

func (s *fakeStore) SetSummaryKey(_ context.Context, id primitive.ObjectID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setSummaryErr != nil {
		return s.setSummaryErr
	}
	p, ok := s.posts[id]
	if !ok {
		return apperr.NotFound("Research post not found")
	}
	p.SummaryKey = key
	s.posts[id] = p
	return nil
}

func (s *fakeStore) InsertComment(_ context.Context, c *models.Comment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = s.tick()
	s.comments[c.ID] = *c
	return c, nil
}

func (s *fakeStore) ListComments(_ context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) GetComment(_ context.Context, id string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	c, ok := s.comments[oid]
	if !ok {
		return nil, apperr.NotFound("Comment not found")
	}
	return &c, nil
}

func (s *fakeStore) DeleteComment(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comments, id)
	return nil
}

func (s *fakeStore) AddBookmark(_ context.Context, userID string, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookmarks {
		if b.UserID == userID && b.PostID == postID {
			return apperr.Duplicate("Research already saved")
		}
	}
	s.bookmarks = append(s.bookmarks, models.Bookmark{UserID: userID, PostID: postID, CreatedAt: s.tick()})
	return nil
}

func (s *fakeStore) RemoveBookmark(_ context.Context, userID string, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.bookmarks {
		if b.UserID == userID && b.PostID == postID {
			s.bookmarks = append(s.bookmarks[:i], s.bookmarks[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("Research not saved")
}

func (s *fakeStore) IsBookmarked(_ context.Context, userID string, postID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookmarks {
		if b.UserID == userID && b.PostID == postID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ListBookmarks(_ context.Context, userID string) ([]models.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bookmark
	for i := len(s.bookmarks) - 1; i >= 0; i-- {
		if s.bookmarks[i].UserID == userID {
			out = append(out, s.bookmarks[i])
		}
	}
	return out, nil
}

type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeFiles() *fakeFiles { return &fakeFiles{objects: map[string][]byte{}} }

func (f *fakeFiles) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeFiles) Download(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", apperr.NotFound("Summary not found")
	}
	return data, "text/markdown", nil
}

func (f *fakeFiles) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}
