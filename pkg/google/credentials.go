package google

import (
	"context"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/klokku/calsync/internal/config"
	log "github.com/sirupsen/logrus"
)

// LoadCredentials returns the OAuth client JSON, read from Secret Manager
// when a secret is configured and from the credentials file otherwise.
func LoadCredentials(ctx context.Context, cfg config.Google) ([]byte, error) {
	if cfg.CredentialsSecret != "" {
		return loadSecret(ctx, secretVersionName(cfg.CredentialsSecret))
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client credentials file %s: %w", cfg.CredentialsFile, err)
	}
	return data, nil
}

// secretVersionName accepts both "projects/p/secrets/s" and a full version
// name; the former resolves to the latest version.
func secretVersionName(name string) string {
	if strings.Contains(name, "/versions/") {
		return name
	}
	return strings.TrimSuffix(name, "/") + "/versions/latest"
}

func loadSecret(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secretmanager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret version: %w", err)
	}
	log.Debugf("Retrieved client credentials from secret %s", name)
	return result.Payload.Data, nil
}
