// Package firebase adapts the hosted identity and profile services:
// accounts through the Identity Toolkit relying-party API and the users/{uid}
// mirror through the Firestore REST API.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ServiceAccount locates the credentials used for Firestore.
type ServiceAccount struct {
	JSON string
	File string
}

// LoadCredentials returns the service account JSON from the inline value,
// the file, or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func LoadCredentials(ctx context.Context, sa ServiceAccount) ([]byte, error) {
	inline := strings.TrimSpace(sa.JSON)
	file := strings.TrimSpace(sa.File)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}
