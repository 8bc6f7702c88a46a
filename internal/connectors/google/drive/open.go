package drive

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-vision/internal/connectors/google"
)

// Options configure Open.
type Options struct {
	Credentials       google.Credentials
	Endpoint          string
	RequestsPerSecond float64
	Config            Config
}

// Open builds an authenticated store from credentials.
func Open(ctx context.Context, opts Options) (*Store, error) {
	ts, err := google.NewTokenSource(ctx, opts.Credentials)
	if err != nil {
		return nil, err
	}

	svc, err := google.NewDriveService(ctx, ts, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	limit := google.DefaultDriveRateLimit
	if opts.RequestsPerSecond > 0 {
		limit.RequestsPerSecond = opts.RequestsPerSecond
	}

	return New(svc, google.NewHTTPClient(ctx, ts), google.NewRateLimiter(limit), opts.Config), nil
}
