// Package gateway wraps the remote backend behind one typed call per operation.
// Every failure is converted here into one of the package's error kinds; nothing
// above this package sees a driver error.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/anonto42/nano-midea/client/internal/models"
	"github.com/anonto42/nano-midea/client/internal/validators"
)

// DefaultTimeout bounds a single backend call when Options.Timeout is zero
const DefaultTimeout = 15 * time.Second

// Accounts is the account and session service
type Accounts interface {
	Create(ctx context.Context, email, password, name string) (*models.Account, error)
	CreateSession(ctx context.Context, email, password string) (*models.Session, error)
	Get(ctx context.Context, token string) (*models.Account, error)
	DeleteSession(ctx context.Context, token string) error
}

// Documents is the document database
type Documents interface {
	Create(ctx context.Context, collection, id string, fields map[string]any) (*models.Document, error)
	Get(ctx context.Context, collection, id string, projection ...string) (*models.Document, error)
	List(ctx context.Context, collection string, q models.Query) (*models.DocumentList, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (*models.Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Files is the file storage service
type Files interface {
	Upload(ctx context.Context, upload *models.Upload) (*models.File, error)
	PreviewURL(id string, width, height int, gravity string, quality int) (string, error)
	Delete(ctx context.Context, id string) error
}

// Options configures a Client
type Options struct {
	Timeout       time.Duration
	AvatarBaseURL string
}

// Client issues backend requests on behalf of one session
type Client struct {
	accounts  Accounts
	documents Documents
	files     Files
	validator *validators.Validator

	timeout       time.Duration
	avatarBaseURL string

	mu      sync.RWMutex
	session *models.Session
}

// New creates a Client with no session
func New(accounts Accounts, documents Documents, files Files, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		accounts:      accounts,
		documents:     documents,
		files:         files,
		validator:     validators.NewValidator(),
		timeout:       opts.Timeout,
		avatarBaseURL: opts.AvatarBaseURL,
	}
}

// Session returns the active session or nil
func (c *Client) Session() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession installs a session obtained elsewhere, e.g. restored from a cookie
func (c *Client) SetSession(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// NewID returns a unique document id
func NewID() string {
	return uuid.NewString()
}

func call[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, c.fail(op, err)
	}
	return v, nil
}

func (c *Client) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := call(ctx, c, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (c *Client) fail(op string, err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return &Error{Op: op + ": " + ge.Op, Kind: ge.Kind, Err: ge.Err}
	}
	e := &Error{Op: op, Kind: classify(err), Err: err}
	switch e.Kind {
	case ErrNotFound, ErrValidationRejected, ErrUnauthorized:
		glog.V(1).Infof("gateway: %v", e)
	default:
		glog.Warningf("gateway: %v", e)
	}
	return e
}

func (c *Client) validate(op string, form any) error {
	if err := c.validator.Validate(form); err != nil {
		return c.fail(op, err)
	}
	return nil
}

// compensate deletes a file uploaded by a write that then failed
func (c *Client) compensate(ctx context.Context, op, fileID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.files.Delete(ctx, fileID); err != nil {
		glog.Errorf("gateway: %s: orphaned file %s: %v", op, fileID, err)
	} else {
		glog.Warningf("gateway: %s: deleted file %s after failure", op, fileID)
	}
	return Partial(op, cause)
}

// discardFile removes a file that is no longer referenced; failures are only logged
func (c *Client) discardFile(ctx context.Context, op, fileID string) {
	if fileID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.files.Delete(ctx, fileID); err != nil {
		glog.Warningf("gateway: %s: could not delete file %s: %v", op, fileID, err)
	}
}
