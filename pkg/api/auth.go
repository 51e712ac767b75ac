package api

import (
	"context"
	"net/http"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterParams struct {
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     leaseqa.Role `json:"role,omitempty"`
}

type sessionPayload struct {
	User *leaseqa.User `json:"user"`
}

// ErrNoSession is returned by Session when the backend answers 2xx but
// carries no user.
var ErrNoSession = &Error{Op: "session", StatusCode: http.StatusUnauthorized, Message: "no active session"}

func (c *Client) userCall(ctx context.Context, op, method string, in any, parts ...string) (*leaseqa.User, error) {
	var out sessionPayload
	if err := c.call(ctx, op, method, c.endpoint(parts...), in, &out); err != nil {
		return nil, err
	}
	if out.User == nil || out.User.ID == "" {
		return nil, ErrNoSession
	}
	return out.User, nil
}

// Session asks the backend who the cookie jar belongs to.
func (c *Client) Session(ctx context.Context) (*leaseqa.User, error) {
	return c.userCall(ctx, "session", http.MethodGet, nil, "auth", "session")
}

func (c *Client) Login(ctx context.Context, p LoginParams) (*leaseqa.User, error) {
	return c.userCall(ctx, "login", http.MethodPost, p, "auth", "login")
}

func (c *Client) Register(ctx context.Context, p RegisterParams) (*leaseqa.User, error) {
	return c.userCall(ctx, "register", http.MethodPost, p, "auth", "register")
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, "logout", http.MethodPost, c.endpoint("auth", "logout"), nil, nil)
}
