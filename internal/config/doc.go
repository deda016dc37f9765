// Package config loads AccessManager's node and coordinator configuration,
// adapted from kubevirt-shepherd's internal/config: viper reads an
// optional config.yaml, environment variables override it with no
// prefix (LOG_LEVEL, SERVER_LISTEN_ADDR, STORAGE_POSTGRES_DSN, ...), and defaults fill
// in anything left unset. Load validates the result before handing it
// back, so a misconfigured node fails at startup rather than at its
// first request.
package config
