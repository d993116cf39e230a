// Package config loads the server's settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the server's full configuration.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string

	// DBPath is the sqlite database file.
	DBPath string

	// AdminToken guards /admin. Empty disables the admin surface.
	AdminToken string

	// AllowedOrigins is the CORS allowlist; empty allows any origin.
	AllowedOrigins []string

	// WSOriginPatterns is the websocket origin allowlist for the game hub.
	WSOriginPatterns []string

	// RaffleStateFile holds the raffle round document.
	RaffleStateFile string

	// RaffleAdminPassword guards draw/reset. Empty disables them.
	RaffleAdminPassword string

	// SheetWebhookURL receives raffle entry rows. Empty disables logging.
	SheetWebhookURL string

	// StatsUpstreamURL is the mining pool stats endpoint.
	StatsUpstreamURL string

	// StatsPeakFile persists the observed peak hashrate.
	StatsPeakFile string

	// StatsSeedPeak seeds the peak before any observation.
	StatsSeedPeak float64
}

// Load reads .env when present, then the environment. Missing .env is not
// an error outside development.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("dotenv_load_failed err=%v", err)
		}
	} else {
		log.Printf("dotenv_loaded file=.env")
	}

	dataDir := envStr("QXMR_DATA_DIR", defaultDataDir())
	return Config{
		ListenAddr:          envStr("QXMR_LISTEN_ADDR", ":8080"),
		DBPath:              envStr("QXMR_DB_PATH", filepath.Join(dataDir, "arcade.db")),
		AdminToken:          os.Getenv("QXMR_ADMIN_TOKEN"),
		AllowedOrigins:      envList("QXMR_ALLOWED_ORIGINS"),
		WSOriginPatterns:    envList("QXMR_WS_ORIGINS"),
		RaffleStateFile:     envStr("QXMR_RAFFLE_STATE", filepath.Join(dataDir, "raffle.json")),
		RaffleAdminPassword: os.Getenv("QXMR_RAFFLE_PASSWORD"),
		SheetWebhookURL:     os.Getenv("QXMR_SHEET_WEBHOOK"),
		StatsUpstreamURL:    envStr("QXMR_STATS_UPSTREAM", "https://supportxmr.com/api/pool/stats"),
		StatsPeakFile:       envStr("QXMR_STATS_PEAK_FILE", filepath.Join(dataDir, "peak.json")),
		StatsSeedPeak:       envFloat("QXMR_STATS_SEED_PEAK", 0),
	}
}

// defaultDataDir returns an OS-appropriate writable directory.
func defaultDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, "qxmr-arcade")
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".qxmr-arcade")
	}
	return "."
}

func envStr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envList(k string) []string {
	raw := os.Getenv(k)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envFloat(k string, def float64) float64 {
	if s := os.Getenv(k); s != "" {
		var v float64
		if _, err := fmt.Sscanf(s, "%g", &v); err == nil {
			return v
		}
	}
	return def
}
