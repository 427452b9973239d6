package security

import (
	"context"

	"github.com/zhihao1021/tjoy/tools/ids"
)

// Resolver turns a bearer token into the user id in its subject.
type Resolver struct {
	opts Options
}

func NewResolver(opts Options) (*Resolver, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	if _, err := verifyKey(opts, method); err != nil {
		return nil, err
	}
	return &Resolver{opts: opts}, nil
}

func (r *Resolver) Authenticate(_ context.Context, credential string) (ids.ID, error) {
	claims, err := Verify(r.opts, credential)
	if err != nil {
		return 0, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return 0, ErrUnauthorized.WrapMsg("bad subject", "err", err)
	}
	return uid, nil
}
