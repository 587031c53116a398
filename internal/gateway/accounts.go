package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/anonto42/nano-midea/client/internal/models"
	"github.com/anonto42/nano-midea/client/internal/repositories"
)

// CreateUserAccount registers an account and its users document
func (c *Client) CreateUserAccount(ctx context.Context, form models.SignupForm) (*models.User, error) {
	const op = "createUserAccount"
	if err := c.validate(op, form); err != nil {
		return nil, err
	}

	account, err := call(ctx, c, op, func(ctx context.Context) (*models.Account, error) {
		return c.accounts.Create(ctx, form.Email, form.Password, form.Name)
	})
	if err != nil {
		return nil, err
	}

	doc, err := call(ctx, c, op+": saveUserToDB", func(ctx context.Context) (*models.Document, error) {
		return c.documents.Create(ctx, models.CollectionUsers, NewID(), map[string]any{
			"accountId":  account.ID,
			"email":      account.Email,
			"name":       account.Name,
			"username":   form.Username,
			"imageUrl":   c.initialsURL(account.Name),
			"bio":        "",
			"following":  []string{},
			"followedBy": []string{},
		})
	})
	if err != nil {
		return nil, err
	}
	return c.toUser(op, doc)
}

// SignIn creates a session and makes it the client's active session
func (c *Client) SignIn(ctx context.Context, form models.SigninForm) (*models.Session, error) {
	const op = "signInAccount"
	if err := c.validate(op, form); err != nil {
		return nil, err
	}
	session, err := call(ctx, c, op, func(ctx context.Context) (*models.Session, error) {
		return c.accounts.CreateSession(ctx, form.Email, form.Password)
	})
	if err != nil {
		return nil, err
	}
	c.SetSession(session)
	return session, nil
}

// GetCurrentUser resolves the active session to its users document
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	const op = "getCurrentUser"
	token := c.token()
	if token == "" {
		return nil, c.fail(op, errNoSession)
	}

	account, err := call(ctx, c, op, func(ctx context.Context) (*models.Account, error) {
		return c.accounts.Get(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	list, err := call(ctx, c, op, func(ctx context.Context) (*models.DocumentList, error) {
		return c.documents.List(ctx, models.CollectionUsers, models.Query{
			Filters: []models.Filter{{Field: "accountId", Value: account.ID}},
			Limit:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(list.Documents) == 0 {
		return nil, c.fail(op, fmt.Errorf("%w: no user for account %s", repositories.ErrNotFound, account.ID))
	}
	return c.toUser(op, &list.Documents[0])
}

// VerifySession checks that the backend still accepts the active session
func (c *Client) VerifySession(ctx context.Context) error {
	const op = "getAccount"
	token := c.token()
	if token == "" {
		return c.fail(op, errNoSession)
	}
	return c.exec(ctx, op, func(ctx context.Context) error {
		_, err := c.accounts.Get(ctx, token)
		return err
	})
}

// SignOut ends the active session. The local session is dropped even when the
// backend no longer knows it.
func (c *Client) SignOut(ctx context.Context) error {
	const op = "signOutAccount"
	token := c.token()
	if token == "" {
		return nil
	}
	err := c.exec(ctx, op, func(ctx context.Context) error {
		return c.accounts.DeleteSession(ctx, token)
	})
	if err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
		c.SetSession(nil)
	}
	return err
}

func (c *Client) initialsURL(name string) string {
	u, err := url.Parse(c.avatarBaseURL)
	if err != nil || c.avatarBaseURL == "" {
		return ""
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) toUser(op string, doc *models.Document) (*models.User, error) {
	user, err := models.UserFromDocument(doc)
	if err != nil {
		return nil, c.fail(op, err)
	}
	return user, nil
}
