package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting the server reads at startup.
type Config struct {
	Port           string
	DatabaseURL    string
	Env            string // "development" | "production"
	AllowedOrigins []string

	// ShuffleSeed makes deck shuffles reproducible for local testing.
	// Ignored entirely when Env is production.
	ShuffleSeed string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading environment variables")
	}

	cfg := &Config{
		Port:        os.Getenv("PORT"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Env:         os.Getenv("APP_ENV"),
		ShuffleSeed: os.Getenv("SHUFFLE_SEED"),
	}

	if cfg.Port == "" {
		cfg.Port = "4000"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("[FATAL] DATABASE_URL is required in .env or environment")
	}

	origins := os.Getenv("ALLOWED_ORIGINS")
	if origins == "" {
		origins = "http://localhost:3000"
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if cfg.Production() && cfg.ShuffleSeed != "" {
		// Seeded shuffles are a fairness backdoor; never honor them in production.
		log.Println("[WARN] SHUFFLE_SEED is set but APP_ENV=production; ignoring seed")
		cfg.ShuffleSeed = ""
	}

	return cfg
}

func (c *Config) Production() bool {
	return c.Env == "production"
}
