// Package gcp builds client options for the Google Cloud speech and
// text-to-speech SDKs.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// CloudPlatformScope is requested for service-account credentials.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrNoCredentials is returned when no API key, credentials file or
// application default credentials can be found.
var ErrNoCredentials = errors.New("gcp: no credentials configured")

// Credentials selects how Google clients authenticate. The first
// non-empty field wins; with both empty, application default
// credentials are used.
type Credentials struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string
}

// ClientOptions resolves c into options for a Google client constructor.
func ClientOptions(ctx context.Context, c Credentials) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.APIKey != "":
		return append(opts, option.WithAPIKey(c.APIKey)), nil
	case c.CredentialsFile != "":
		data, err := os.ReadFile(c.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gcp: read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("gcp: parse credentials: %w", err)
		}
		return append(opts, option.WithCredentials(creds)), nil
	default:
		creds, err := google.FindDefaultCredentials(ctx, CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
		}
		return append(opts, option.WithCredentials(creds)), nil
	}
}
