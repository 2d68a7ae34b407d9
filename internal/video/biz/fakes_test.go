package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErrs   []error // consumed one per Put call
	putCalls  int
	removed   []string
	removeErr error
	removeCtx []error // ctx.Err() seen by each Remove
	pingErr   error
	onPut     func(call int)
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress func(int64)) error {
	s.mu.Lock()
	s.putCalls++
	call := s.putCalls
	var err error
	if len(s.putErrs) > 0 {
		err = s.putErrs[0]
		s.putErrs = s.putErrs[1:]
	}
	hook := s.onPut
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	var buf bytes.Buffer
	chunk := make([]byte, 4)
	for {
		n, rerr := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if onProgress != nil {
				onProgress(int64(buf.Len()))
			}
			// fail half way through
			if err != nil && int64(buf.Len())*2 >= size {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return err
	}
	if int64(buf.Len()) != size {
		return fmt.Errorf("short body: %d of %d", buf.Len(), size)
	}

	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCtx = append(s.removeCtx, ctx.Err())
	s.removed = append(s.removed, key)
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) PublicURL(key string) string {
	return "https://cdn.example.com/bucket/" + key
}

func (s *fakeStore) Ping(context.Context) error {
	return s.pingErr
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeRepo struct {
	mu          sync.Mutex
	records     map[string]*VideoRecord
	insertErrs  []error
	insertCalls int
	updateErr   error
	deleteErr   error
	findCalls   int
	pingErr     error
	onInsert    func()
	// runs once, after the first FindByShareToken has read its result
	afterShareLookup func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*VideoRecord)}
}

func (r *fakeRepo) Insert(ctx context.Context, v *VideoRecord) (*VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.onInsert != nil {
		r.onInsert()
	}
	if len(r.insertErrs) > 0 {
		err := r.insertErrs[0]
		r.insertErrs = r.insertErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	for _, existing := range r.records {
		if existing.ShareToken == v.ShareToken {
			return nil, ErrShareTokenConflict
		}
	}
	saved := *v
	saved.ID = uuid.NewString()
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	r.records[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (r *fakeRepo) Update(ctx context.Context, v *VideoRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.records[v.ID]; !ok {
		return ErrNotFound
	}
	cp := *v
	r.records[v.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	v, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *fakeRepo) FindByShareToken(ctx context.Context, token string) (*VideoRecord, error) {
	v, err := r.findByShareToken(token)
	if hook := r.afterShareLookup; hook != nil {
		r.afterShareLookup = nil
		hook()
	}
	return v, err
}

func (r *fakeRepo) findByShareToken(token string) (*VideoRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	for _, v := range r.records {
		if v.ShareToken == token {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter) ([]*VideoRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*VideoRecord, 0, len(r.records))
	for _, v := range r.records {
		out = append(out, v)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) Ping(context.Context) error {
	return r.pingErr
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*VideoRecord
	evicted []string
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*VideoRecord)}
}

func (c *fakeCache) Get(ctx context.Context, token string) (*VideoRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.entries[token]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, v *VideoRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[v.ShareToken] = v
	return nil
}

func (c *fakeCache) Evict(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	c.evicted = append(c.evicted, token)
	return nil
}

// sequenceIssuer returns tokens in order
type sequenceIssuer struct {
	tokens []string
	err    error
	calls  int
}

func (s *sequenceIssuer) Issue() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	t := s.tokens[s.calls%len(s.tokens)]
	s.calls++
	return t, nil
}

var errTransient = fmt.Errorf("put object: %w", ErrTransientTransport)

var errDB = errors.New("pq: connection to database lost")

func testConfig() *Config {
	return &Config{
		KeyPrefix:           "videos",
		CompensationTimeout: time.Second,
		Retry: RetryPolicy{
			MaxAttempts:    3,
			BaseDelay:      time.Millisecond,
			MaxDelay:       5 * time.Millisecond,
			AttemptTimeout: time.Second,
		},
	}
}

// progressRecorder collects reported values
type progressRecorder struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressRecorder) fn(v float64) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func (p *progressRecorder) all() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.values...)
}
