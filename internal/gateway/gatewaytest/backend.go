// Package gatewaytest provides an in-memory backend for gateway.Client with
// call counting, failure injection and call holding.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/models"
	"github.com/anonto42/nano-midea/client/internal/repositories"
)

// Operation names accepted by FailNext, Hold and Calls
const (
	OpCreateAccount = "accounts.Create"
	OpCreateSession = "accounts.CreateSession"
	OpGetAccount    = "accounts.Get"
	OpDeleteSession = "accounts.DeleteSession"
	OpCreateDoc     = "documents.Create"
	OpGetDoc        = "documents.Get"
	OpListDocs      = "documents.List"
	OpUpdateDoc     = "documents.Update"
	OpDeleteDoc     = "documents.Delete"
	OpUpload        = "files.Upload"
	OpPreview       = "files.PreviewURL"
	OpDeleteFile    = "files.Delete"
)

type account struct {
	models.Account
	password string
}

// Backend is a shared in-memory account service, document store and file store
type Backend struct {
	Accounts  *AccountService
	Documents *DocumentStore
	Files     *FileStore

	mu       sync.Mutex
	now      time.Time
	accounts map[string]*account
	sessions map[string]string
	docs     map[string]map[string]*models.Document
	files    map[string]*models.Upload
	failures map[string][]error
	holds    map[string]chan struct{}
	calls    map[string]int
}

// New returns an empty backend whose clock starts at a fixed instant and
// advances by one millisecond per write
func New() *Backend {
	b := &Backend{
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		accounts: make(map[string]*account),
		sessions: make(map[string]string),
		docs:     make(map[string]map[string]*models.Document),
		files:    make(map[string]*models.Upload),
		failures: make(map[string][]error),
		holds:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
	b.Accounts = &AccountService{b: b}
	b.Documents = &DocumentStore{b: b}
	b.Files = &FileStore{b: b}
	return b
}

// Client returns a gateway client backed by b
func (b *Backend) Client(opts gateway.Options) *gateway.Client {
	return gateway.New(b.Accounts, b.Documents, b.Files, opts)
}

// FailNext makes the next call of op return err. Repeated calls queue errors.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

// Hold blocks every call of op until release is called or the caller's context ends
func (b *Backend) Hold(op string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[op] = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.holds[op] == ch {
				delete(b.holds, op)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Calls reports how many times op was invoked
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Put stores a document directly, bypassing failure injection
func (b *Backend) Put(collection, id string, fields map[string]any) *models.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.tick()
	doc := &models.Document{ID: id, Collection: collection, CreatedAt: now, UpdatedAt: now, Fields: cloneFields(fields)}
	b.collection(collection)[id] = doc
	return cloneDoc(doc)
}

// Doc returns a copy of a stored document
func (b *Backend) Doc(collection, id string) (*models.Document, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[collection][id]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

// Count returns the number of documents in collection
func (b *Backend) Count(collection string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs[collection])
}

// HasFile reports whether a file with id is stored
func (b *Backend) HasFile(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[id]
	return ok
}

// FileCount returns the number of stored files
func (b *Backend) FileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

// enter records a call of op, waits out any hold and pops an injected failure
func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	hold := b.holds[op]
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if q := b.failures[op]; len(q) > 0 {
		b.failures[op] = q[1:]
		return q[0]
	}
	return ctx.Err()
}

func (b *Backend) tick() time.Time {
	b.now = b.now.Add(time.Millisecond)
	return b.now
}

func (b *Backend) collection(name string) map[string]*models.Document {
	c, ok := b.docs[name]
	if !ok {
		c = make(map[string]*models.Document)
		b.docs[name] = c
	}
	return c
}

// AccountService implements gateway.Accounts
type AccountService struct{ b *Backend }

func (s *AccountService) Create(ctx context.Context, email, password, name string) (*models.Account, error) {
	if err := s.b.enter(ctx, OpCreateAccount); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.accounts[email]; ok {
		return nil, fmt.Errorf("%w: email %s already registered", repositories.ErrConflict, email)
	}
	now := s.b.tick()
	a := &account{
		Account:  models.Account{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: now, UpdatedAt: now},
		password: password,
	}
	s.b.accounts[email] = a
	acc := a.Account
	return &acc, nil
}

func (s *AccountService) CreateSession(ctx context.Context, email, password string) (*models.Session, error) {
	if err := s.b.enter(ctx, OpCreateSession); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	a, ok := s.b.accounts[email]
	if !ok || a.password != password {
		return nil, repositories.ErrInvalidCredentials
	}
	token := "token-" + uuid.NewString()
	s.b.sessions[token] = a.ID
	return &models.Session{ID: uuid.NewString(), AccountID: a.ID, Token: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *AccountService) Get(ctx context.Context, token string) (*models.Account, error) {
	if err := s.b.enter(ctx, OpGetAccount); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	id, ok := s.b.sessions[token]
	if !ok {
		return nil, repositories.ErrSessionExpired
	}
	for _, a := range s.b.accounts {
		if a.ID == id {
			acc := a.Account
			return &acc, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *AccountService) DeleteSession(ctx context.Context, token string) error {
	if err := s.b.enter(ctx, OpDeleteSession); err != nil {
		return err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.sessions[token]; !ok {
		return repositories.ErrSessionExpired
	}
	delete(s.b.sessions, token)
	return nil
}

// DocumentStore implements gateway.Documents
type DocumentStore struct{ b *Backend }

func (s *DocumentStore) Create(ctx context.Context, collection, id string, fields map[string]any) (*models.Document, error) {
	if err := s.b.enter(ctx, OpCreateDoc); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	c := s.b.collection(collection)
	if _, ok := c[id]; ok {
		return nil, fmt.Errorf("%w: %s/%s exists", repositories.ErrConflict, collection, id)
	}
	now := s.b.tick()
	doc := &models.Document{ID: id, Collection: collection, CreatedAt: now, UpdatedAt: now, Fields: cloneFields(fields)}
	c[id] = doc
	return cloneDoc(doc), nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string, projection ...string) (*models.Document, error) {
	if err := s.b.enter(ctx, OpGetDoc); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	doc, ok := s.b.docs[collection][id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneDoc(doc)
	if len(projection) > 0 {
		fields := make(map[string]any, len(projection))
		for _, k := range projection {
			if v, ok := out.Fields[k]; ok {
				fields[k] = v
			}
		}
		out.Fields = fields
	}
	return out, nil
}

func (s *DocumentStore) List(ctx context.Context, collection string, q models.Query) (*models.DocumentList, error) {
	if err := s.b.enter(ctx, OpListDocs); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	matched := make([]*models.Document, 0, len(s.b.docs[collection]))
	for _, doc := range s.b.docs[collection] {
		if matches(doc, q) {
			matched = append(matched, doc)
		}
	}
	slices.SortFunc(matched, func(a, b *models.Document) int {
		if q.OrderDesc != "" {
			if c := orderValue(b, q.OrderDesc).Compare(orderValue(a, q.OrderDesc)); c != 0 {
				return c
			}
		}
		return strings.Compare(b.ID, a.ID)
	})

	list := &models.DocumentList{Total: len(matched), Documents: []models.Document{}}
	if q.CursorAfter != "" {
		i := slices.IndexFunc(matched, func(d *models.Document) bool { return d.ID == q.CursorAfter })
		if i < 0 {
			return nil, fmt.Errorf("%w: cursor %s", repositories.ErrNotFound, q.CursorAfter)
		}
		matched = matched[i+1:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	for _, doc := range matched {
		list.Documents = append(list.Documents, *cloneDoc(doc))
	}
	return list, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) (*models.Document, error) {
	if err := s.b.enter(ctx, OpUpdateDoc); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	doc, ok := s.b.docs[collection][id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	for k, v := range cloneFields(fields) {
		doc.Fields[k] = v
	}
	doc.UpdatedAt = s.b.tick()
	return cloneDoc(doc), nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.b.enter(ctx, OpDeleteDoc); err != nil {
		return err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.docs[collection][id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.b.docs[collection], id)
	return nil
}

// FileStore implements gateway.Files
type FileStore struct{ b *Backend }

func (s *FileStore) Upload(ctx context.Context, upload *models.Upload) (*models.File, error) {
	if err := s.b.enter(ctx, OpUpload); err != nil {
		return nil, err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	id := uuid.NewString()
	s.b.files[id] = upload
	return &models.File{ID: id, Name: upload.Name, Size: int64(len(upload.Data))}, nil
}

func (s *FileStore) PreviewURL(id string, width, height int, gravity string, quality int) (string, error) {
	if err := s.b.enter(context.Background(), OpPreview); err != nil {
		return "", err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.files[id]; !ok {
		return "", repositories.ErrNotFound
	}
	return fmt.Sprintf("https://files.test/%s/preview?width=%d&height=%d&gravity=%s&quality=%d", id, width, height, gravity, quality), nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := s.b.enter(ctx, OpDeleteFile); err != nil {
		return err
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if _, ok := s.b.files[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.b.files, id)
	return nil
}

func matches(doc *models.Document, q models.Query) bool {
	for _, f := range q.Filters {
		if doc.Fields[f.Field] != f.Value {
			return false
		}
	}
	if q.Search != nil {
		return strings.Contains(strings.ToLower(doc.String(q.Search.Field)), strings.ToLower(q.Search.Term))
	}
	return true
}

func orderValue(doc *models.Document, field string) time.Time {
	switch field {
	case models.FieldCreatedAt:
		return doc.CreatedAt
	case models.FieldUpdatedAt:
		return doc.UpdatedAt
	}
	t, _ := doc.Fields[field].(time.Time)
	return t
}

func cloneDoc(doc *models.Document) *models.Document {
	out := *doc
	out.Fields = cloneFields(doc.Fields)
	return &out
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.([]string); ok {
			v = slices.Clone(s)
		}
		out[k] = v
	}
	return out
}
