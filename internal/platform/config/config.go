package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	JWTSigningKey   string
	JWTIssuer       string
	AuditBufferSize int
	ShutdownTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. An empty COREBANK_DATABASE_URL selects the in-memory stores.
func FromEnv() Server {
	addr := os.Getenv("COREBANK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}
	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "corebank"
	}

	auditBuffer := 256
	if raw := os.Getenv("COREBANK_AUDIT_BUFFER"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			auditBuffer = n
		}
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     os.Getenv("COREBANK_DATABASE_URL"),
		JWTSigningKey:   jwtSigningKey,
		JWTIssuer:       jwtIssuer,
		AuditBufferSize: auditBuffer,
		ShutdownTimeout: 10 * time.Second,
	}
}
