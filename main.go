package main

import (
	"fmt"
	"os"
	"path/filepath"

	"sheetstamp/internal/config"
)

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	dataDir := config.DataDir()
	settingsPath := os.Getenv("SHEETSTAMP_SETTINGS")
	if settingsPath == "" {
		settingsPath = filepath.Join(dataDir, "settings.json")
	}
	store := config.NewStore(settingsPath, dataDir)

	repo, err := NewRepo(filepath.Join(dataDir, "sheetstamp.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	app := NewApp(repo, store)
	if err := SetupCommands(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		repo.Close()
		os.Exit(1)
	}
}
