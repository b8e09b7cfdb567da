package google

import (
	"context"
	"fmt"
	"net/http"

	"github.com/klokku/calsync/internal/config"
	"github.com/klokku/calsync/internal/utils"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const applicationName = "klokku/calsync"

// NewGateway prepares a Gateway authorized with the stored OAuth token.
func NewGateway(ctx context.Context, auth *Authorizer, clock utils.Clock, cfg config.Google) (*Gateway, error) {
	client, err := auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	return NewGatewayWithClient(ctx, client, clock, cfg.PageSize)
}

// NewGatewayWithClient builds a Gateway on an already authorized HTTP client.
// Extra options are passed to the API client, e.g. a custom endpoint.
func NewGatewayWithClient(ctx context.Context, client *http.Client, clock utils.Clock, pageSize int64, opts ...option.ClientOption) (*Gateway, error) {
	opts = append([]option.ClientOption{
		option.WithHTTPClient(client),
		option.WithUserAgent(applicationName),
	}, opts...)
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		err := fmt.Errorf("unable to create Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}
	return newGateway(service, clock, pageSize), nil
}
