package portal

import (
	"context"
	"net/http"
)

// InteractiveLogin drives the identity provider's sign-in form and returns
// the resulting session cookies. The session depends only on this contract;
// the browser automation behind it lives elsewhere, and tests substitute a
// canned implementation.
type InteractiveLogin interface {
	Perform(ctx context.Context, username, password string) ([]*http.Cookie, error)
}
