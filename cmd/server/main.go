package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"trade-companion/backend/internal/api"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("load .env file")
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if override := strings.TrimSpace(os.Getenv("DATA_DIR")); override != "" {
		dataDir = override
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	contact := strings.TrimSpace(os.Getenv("CONTACT_EMAIL"))
	if contact == "" {
		logrus.Fatal("CONTACT_EMAIL is required: the trade API usage policy needs an identifying user agent")
	}

	cfg := api.Config{
		DBPath:        filepath.Join(dataDir, "trade-companion.db"),
		DataDir:       dataDir,
		DefaultLeague: strings.TrimSpace(os.Getenv("LEAGUE")),
		Contact:       "trade-companion/0.1 (contact: " + contact + ")",
		SessionID:     strings.TrimSpace(os.Getenv("POESESSID")),
		RequestPause:  api.DefaultRequestPause,
	}

	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUZZY_THRESHOLD")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FuzzyThreshold = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("STATS_RETRY_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatsRetryInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_PAUSE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestPause = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.HistoryLimit = parsed
		}
	}
	if override := strings.TrimSpace(os.Getenv("DB_PATH")); override != "" {
		cfg.DBPath = override
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("starting trade-companion backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
