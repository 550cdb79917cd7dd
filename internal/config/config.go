package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   []byte
	// JWTExpiresSeconds controls token lifetime (default 3600).
	JWTExpiresSeconds int
	CORSOrigins       []string
	// DataEncryptionKeys: "v1:<base64 32 bytes>,v2:..." for CPF-at-rest encryption.
	DataEncryptionKeys string
	CurrentDataKeyVer  string
	AppPublicURL       string
	DBMaxConns         int
	DBMinConns         int
	RequestTimeoutSec  int
}

func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < 32 {
		jwtSecret = "default-secret-min-32-chars-required!!"
	}
	cors := os.Getenv("CORS_ORIGINS")
	if cors == "" {
		cors = "http://localhost:5173"
	}
	var origins []string
	for _, o := range strings.Split(cors, ",") {
		if t := strings.TrimSpace(o); t != "" {
			origins = append(origins, t)
		}
	}
	return &Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          []byte(jwtSecret),
		JWTExpiresSeconds:  getEnvInt("JWT_EXPIRES_SECONDS", 3600),
		CORSOrigins:        origins,
		DataEncryptionKeys: getEnv("DATA_ENCRYPTION_KEYS", "v1:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"),
		CurrentDataKeyVer:  getEnv("CURRENT_DATA_KEY_VERSION", "v1"),
		AppPublicURL:       getEnv("APP_PUBLIC_URL", "http://localhost:8080"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 0),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 0),
		RequestTimeoutSec:  getEnvInt("REQUEST_TIMEOUT_SEC", 30),
	}
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}
