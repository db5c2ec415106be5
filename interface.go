package apiclient

import (
	"context"
	"net/url"

	"github.com/layer-3/apiclient/client"
	"github.com/layer-3/apiclient/core"
)

// API is the surface application code talks to. *client.Client implements it.
type API interface {
	// Do sends a request, renewing the session once on a 401
	Do(ctx context.Context, req *core.Request) (*core.Response, error)

	// DoJSON is Do plus decoding of the response body
	DoJSON(ctx context.Context, req *core.Request, out any) error

	Get(ctx context.Context, path string, query url.Values) (*core.Response, error)
	Post(ctx context.Context, path string, body any) (*core.Response, error)
	Put(ctx context.Context, path string, body any) (*core.Response, error)
	Patch(ctx context.Context, path string, body any) (*core.Response, error)
	Delete(ctx context.Context, path string) (*core.Response, error)
	Upload(ctx context.Context, method, path string, form *core.Multipart) (*core.Response, error)

	// Login stores the credential returned for the given login body
	Login(ctx context.Context, credentials any) error

	// Logout forgets the session, telling the backend when possible
	Logout(ctx context.Context)

	Session(ctx context.Context) client.SessionInfo
}

var _ API = (*client.Client)(nil)
