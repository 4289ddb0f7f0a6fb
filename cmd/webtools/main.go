package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/cjremmett/webtools/internal/app"
	"github.com/cjremmett/webtools/internal/config"
	"github.com/cjremmett/webtools/internal/secrets"
)

var rootCmd = &cobra.Command{
	Use:   "webtools",
	Short: "webtools - personal multi-tool web backend",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the full backend (HTTP server + chat loop + scheduler)",
	RunE:  runServe,
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Inspect the secrets directory, or push it into Redis with --reload",
	RunE:  runSecrets,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and secrets directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show webtools configuration",
	RunE:  runStatus,
}

var reloadFlag bool

func init() {
	secretsCmd.Flags().BoolVar(&reloadFlag, "reload", false, "push the secrets directory into Redis")
	rootCmd.AddCommand(serveCmd, secretsCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	return a.Run(ctx)
}

func runSecrets(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !reloadFlag {
		doc, err := secrets.LoadDir(cfg.Secrets.Dir)
		if err != nil {
			return fmt.Errorf("read secrets dir: %w", err)
		}
		for module, fields := range doc.Secrets {
			fmt.Printf("%s: %d fields\n", module, len(fields))
		}
		return nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer rdb.Close()

	store := secrets.NewStore(rdb, cfg.Secrets.Dir)
	if err := store.Reload(context.Background()); err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	fmt.Printf("Secrets reloaded from %s\n", cfg.Secrets.Dir)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, _ := config.LoadConfig()
	if err := os.MkdirAll(cfg.Secrets.Dir, 0700); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	fmt.Printf("Secrets directory ready: %s\n", cfg.Secrets.Dir)

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Drop per-module JSON files into %s (gemini.json, api_ninjas.json, ...)\n", cfg.Secrets.Dir)
	fmt.Printf("  2. Edit %s for datastore addresses\n", cfgPath)
	fmt.Println("  3. Run 'webtools serve'")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Postgres: %s\n", cfg.Postgres.URL)
	fmt.Printf("Mongo: %s/%s\n", cfg.Mongo.URI, cfg.Mongo.Database)
	fmt.Printf("Redis: %s\n", cfg.Redis.Addr)
	fmt.Printf("Gemini model: %s\n", cfg.Gemini.Model)
	fmt.Printf("Secrets dir: %s (watch=%v)\n", cfg.Secrets.Dir, cfg.Secrets.Watch)

	if doc, err := secrets.LoadDir(cfg.Secrets.Dir); err != nil {
		fmt.Printf("Secrets: error (%v)\n", err)
	} else {
		fmt.Printf("Secrets: %d modules on disk\n", len(doc.Secrets))
	}

	fmt.Printf("DDNS schedule: %s\n", orNone(cfg.DDNS.Schedule))
	fmt.Printf("Check-in reminder schedule: %s\n", orNone(cfg.Reminders.CheckinSchedule))
	fmt.Printf("Mail dispatch schedule: %s\n", orNone(cfg.Mail.DispatchSchedule))

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
