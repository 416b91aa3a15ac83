package clusterproto

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/dreamware/distmem/internal/wire"
)

// Register announces rank/addr to the Director at directorAddr, retrying
// with exponential backoff in place of the teacher's fixed 10-attempt,
// 400ms-interval loop (cmd/node/main.go's register) — the retry shape the
// rest of the pack reaches for (cenkalti/backoff) rather than a hand
// rolled sleep loop, to absorb the Director still being mid-startup.
func Register(ctx context.Context, directorAddr string, rank int, addr string) error {
	client := NewClient(directorAddr)

	env, err := wire.Encode(rank, wire.TagRegister, wire.RegisterRequest{Rank: rank, Addr: addr})
	if err != nil {
		return errors.Wrap(err, "clusterproto: encode register envelope")
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		return client.Send(ctx, env, nil)
	}, policy)
}
