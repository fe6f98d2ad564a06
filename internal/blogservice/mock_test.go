package blogservice

import (
	"cmp"
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/userservice"
)

// memStore is an in-memory store with the same derivation and validation
// rules as BlogModel.
type memStore struct {
	mu         sync.Mutex
	blogs      map[uuid.UUID]*Blog
	clock      time.Time
	insertErr  error
	updateErr  error
	updates    int
	deleteCall int
}

func newMemStore() *memStore {
	return &memStore{
		blogs: make(map[uuid.UUID]*Blog),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cloneBlog(b *Blog) *Blog {
	c := *b
	c.Tags = slices.Clone(b.Tags)
	c.Likes = slices.Clone(b.Likes)
	c.Comments = slices.Clone(b.Comments)
	return &c
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) insert(_ context.Context, b *Blog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	if err := b.prepare(); err != nil {
		return err
	}

	b.ID = uuid.New()
	b.CreatedAt = s.tick()
	b.UpdatedAt = b.CreatedAt
	b.Version = 1
	b.Likes = []uuid.UUID{}
	b.Comments = []Comment{}
	s.blogs[b.ID] = cloneBlog(b)

	return nil
}

func (s *memStore) get(_ context.Context, id uuid.UUID) (*Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blogs[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	return cloneBlog(b), nil
}

func (s *memStore) sorted(keep func(*Blog) bool) []Blog {
	var out []Blog
	for _, b := range s.blogs {
		if keep(b) {
			out = append(out, *cloneBlog(b))
		}
	}
	slices.SortFunc(out, func(a, b Blog) int { return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano()) })
	return out
}

func (s *memStore) listPublished(_ context.Context, f Filter) ([]Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sorted(func(b *Blog) bool {
		return b.Status == StatusPublished &&
			(f.Tag == "" || slices.Contains(b.Tags, f.Tag)) &&
			(f.AuthorID == uuid.Nil || b.AuthorID == f.AuthorID)
	})

	if f.Offset >= len(out) {
		return []Blog{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) listByAuthor(_ context.Context, authorID uuid.UUID, status Status) ([]Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sorted(func(b *Blog) bool { return b.AuthorID == authorID && b.Status == status })
	if out == nil {
		out = []Blog{}
	}
	return out, nil
}

func (s *memStore) update(_ context.Context, id uuid.UUID, patch BlogPatch) (*Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return nil, s.updateErr
	}

	stored, ok := s.blogs[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}

	b := cloneBlog(stored)
	if err := patch.apply(b); err != nil {
		return nil, err
	}
	if err := b.prepare(); err != nil {
		return nil, err
	}

	b.UpdatedAt = s.tick()
	b.Version++
	s.blogs[id] = b
	s.updates++

	return cloneBlog(b), nil
}

func (s *memStore) delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteCall++
	if _, ok := s.blogs[id]; !ok {
		return common.ErrRecordNotFound
	}
	delete(s.blogs, id)
	return nil
}

func (s *memStore) addLike(_ context.Context, id, userID uuid.UUID) (*Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blogs[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	if slices.Contains(b.Likes, userID) {
		return nil, common.ErrAlreadyLiked
	}
	b.Likes = append(b.Likes, userID)
	return cloneBlog(b), nil
}

func (s *memStore) appendComment(_ context.Context, id, userID uuid.UUID, text string) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blogs[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	b.Comments = append(b.Comments, Comment{ID: uuid.New(), BlogID: id, UserID: userID, Text: text, CreatedAt: s.tick()})
	return slices.Clone(b.Comments), nil
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, r, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Delete(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *mockGateway) Owns(url string) bool {
	args := m.Called(url)
	return args.Bool(0)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) ScheduleCleanup(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

// stubDirectory resolves the ids it knows about.
type stubDirectory map[uuid.UUID]userservice.Profile

func (d stubDirectory) GetProfiles(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]userservice.Profile, error) {
	out := make(map[uuid.UUID]userservice.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
