package social

import (
	"context"
	"fmt"
	"sync"
)

// FakePlatform is a deterministic in-memory platform for tests and local
// development without credentials.
type FakePlatform struct {
	mu      sync.Mutex
	name    string
	posts   map[string][]Post
	failure error
	calls   int
}

// NewFakePlatform creates a fake named platform.
func NewFakePlatform(name string) *FakePlatform {
	return &FakePlatform{name: name, posts: make(map[string][]Post)}
}

// Name identifies the fake in analysis output.
func (f *FakePlatform) Name() string { return f.name }

// Seed registers the posts returned for a keyword.
func (f *FakePlatform) Seed(keyword string, posts []Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[keyword] = posts
}

// SetFailure makes every subsequent fetch return err. Pass nil to recover.
func (f *FakePlatform) SetFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failure = err
}

// Calls reports how many fetches the fake served.
func (f *FakePlatform) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FetchPosts returns seeded posts for the keyword.
func (f *FakePlatform) FetchPosts(ctx context.Context, keyword string) ([]Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failure != nil {
		return nil, f.failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	posts, ok := f.posts[keyword]
	if !ok {
		return nil, fmt.Errorf("fake platform %s has no posts for %q", f.name, keyword)
	}
	return posts, nil
}
