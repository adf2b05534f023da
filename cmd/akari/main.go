package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mkoriyama/Akari/common/crypto"
	"github.com/mkoriyama/Akari/common/version"
	"github.com/mkoriyama/Akari/internal/akari/app"
	"github.com/mkoriyama/Akari/internal/akari/config"
	"github.com/mkoriyama/Akari/internal/akari/matrix"
	"github.com/mkoriyama/Akari/internal/akari/observability"
)

func main() {
	fmt.Printf("Akari Personal Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	configPath := flag.String("config", "", "path to YAML config file (optional; env vars alone suffice)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	observability.Setup(cfg.Log.Level, cfg.Log.Format)

	// The master key is optional; without it notes are stored in plaintext.
	masterKey, err := crypto.LoadMasterKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nGenerate a key with: openssl rand -hex 32\n", err)
		os.Exit(1)
	}
	if masterKey == nil {
		slog.Warn("AKARI_MASTER_KEY not set; note content will be stored unencrypted")
	}

	akari, err := app.New(&app.Config{
		DatabasePath: cfg.DatabasePath,
		Matrix: matrix.Config{
			Homeserver:     cfg.Matrix.Homeserver,
			UserID:         cfg.Matrix.UserID,
			AccessToken:    cfg.Matrix.AccessToken,
			AssistantRooms: cfg.Matrix.AssistantRooms,
			WatchRooms:     cfg.Matrix.WatchRooms,
		},
		AllowedUsers: cfg.AllowedUsers,
		MasterKey:    masterKey,
		LLM: app.LLMConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Timeout:     time.Duration(cfg.LLM.Timeout),
			RateLimit:   cfg.LLM.RateLimit,
			TokenBudget: cfg.LLM.DailyTokens,
		},
		HTTPAddr: cfg.HealthAddr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Akari: %v\n", err)
		os.Exit(1)
	}
	defer akari.Stop()

	if err := akari.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Akari: %v\n", err)
		os.Exit(1)
	}
}
