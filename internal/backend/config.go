package backend

import (
	"fmt"

	"presupuestos/internal/config"
)

// LocalDocumentsPath is where the server mounts the local document endpoint.
const LocalDocumentsPath = "/rtdb"

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	// Local backends talk to the endpoint this process serves.
	baseURL := appConfig.PresupuestosBaseURL
	if baseURL == "" && backendType.Local() {
		baseURL = fmt.Sprintf("http://127.0.0.1:%s%s", appConfig.Port, LocalDocumentsPath)
	}

	var key []byte
	if appConfig.TokenSigningKey != "" {
		key = []byte(appConfig.TokenSigningKey)
	}

	return Config{
		Type:                backendType,
		PresupuestosBaseURL: baseURL,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		TokenSigningKey:  key,
		TokenTTL:         appConfig.TokenTTL,
		LoginMaxAttempts: appConfig.LoginMaxAttempts,
		LoginLockout:     appConfig.LoginLockout,

		FirebaseAPIKey:           appConfig.FirebaseAPIKey,
		FirebaseProjectID:        appConfig.FirebaseProjectID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.PresupuestosBaseURL == "" {
		return fmt.Errorf("presupuestos base URL is required for %s backend", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case FirebaseBackend:
		if c.FirebaseAPIKey == "" {
			return fmt.Errorf("Firebase API key is required for firebase backend")
		}
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("Firebase project ID is required for firebase backend")
		}

	case MemoryBackend:
		// Nothing else to check.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, FirebaseBackend}
}
