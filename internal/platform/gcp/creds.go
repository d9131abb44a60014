package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/casevault/discovery-backend/internal/platform/envutil"
)

// ClientOptionsFromEnv resolves GCS credentials: inline JSON wins over a
// key-file path; nil means application default credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := envutil.Str("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	if creds == "" {
		creds = envutil.Str("GOOGLE_APPLICATION_CREDENTIALS", "")
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
