package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// Steps of the sign-up flow
const (
	StepCreateAccount = "create account"
	StepCreateSession = "create session"
	StepCurrentUser   = "load current user"
)

// StepError is a failed step of a multi-step account flow
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// SignUp creates the account, signs in and resolves the new current user. The
// first failing step stops the flow and is named in the returned StepError.
func (co *Coordinator) SignUp(ctx context.Context, form models.SignupForm) (*models.User, error) {
	if _, err := co.gw.CreateUserAccount(ctx, form); err != nil {
		return nil, co.stepFailed("Sign up", StepCreateAccount, err)
	}
	signin := models.SigninForm{Email: form.Email, Password: form.Password}
	if _, err := co.gw.SignIn(ctx, signin); err != nil {
		return nil, co.stepFailed("Sign in", StepCreateSession, err)
	}
	user, err := co.gw.GetCurrentUser(ctx)
	if err != nil {
		return nil, co.stepFailed("Sign up", StepCurrentUser, err)
	}
	co.cache.Write(cache.CurrentUserKey, *user)
	return user, nil
}

// SignIn starts a session and resolves the current user
func (co *Coordinator) SignIn(ctx context.Context, form models.SigninForm) (*models.User, error) {
	if _, err := co.gw.SignIn(ctx, form); err != nil {
		return nil, co.stepFailed("Sign in", StepCreateSession, err)
	}
	user, err := co.gw.GetCurrentUser(ctx)
	if err != nil {
		return nil, co.stepFailed("Sign in", StepCurrentUser, err)
	}
	co.cache.Write(cache.CurrentUserKey, *user)
	return user, nil
}

// SignOut ends the session and drops everything cached for it
func (co *Coordinator) SignOut(ctx context.Context) error {
	err := co.gw.SignOut(ctx)
	if err == nil || errors.Is(err, gateway.ErrUnauthorized) || errors.Is(err, gateway.ErrNotFound) {
		co.cache.Reset()
		return nil
	}
	co.notifier.Notify(failed("Sign out", err))
	return err
}

func (co *Coordinator) stepFailed(action, step string, err error) error {
	co.notifier.Notify(failed(action, err))
	return &StepError{Step: step, Err: err}
}
