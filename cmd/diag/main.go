// Command diag checks the server's external dependencies: the Postgres
// database, the n8n API and the Google OAuth client configuration. Each
// check prints a PASS/FAIL line; the exit code is non-zero when any fails.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"agendacerto/internal/model"
	"agendacerto/internal/n8n"
	"agendacerto/pkg/config"
	"agendacerto/pkg/database"
)

const checkTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	target := "all"
	if len(os.Args) > 1 {
		target = os.Args[1]
	}

	checks := map[string]func(*config.Config) error{
		"db":     checkDB,
		"n8n":    checkN8N,
		"google": checkGoogle,
	}

	var names []string
	if target == "all" {
		names = []string{"db", "n8n", "google"}
	} else if _, ok := checks[target]; ok {
		names = []string{target}
	} else {
		fmt.Fprintf(os.Stderr, "usage: diag [db|n8n|google|all]\n")
		os.Exit(2)
	}

	failed := false
	for _, name := range names {
		if err := checks[name](cfg); err != nil {
			fmt.Printf("FAIL  %-8s %v\n", name, err)
			failed = true
		} else {
			fmt.Printf("PASS  %-8s ok\n", name)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func checkDB(cfg *config.Config) error {
	if err := database.InitDB(cfg); err != nil {
		return err
	}
	sqlDB, err := database.GetDB().DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}

	// Probe the two core tables so a missing migration fails loudly
	db := database.GetDB().WithContext(ctx)
	var empresas, users int64
	if err := db.Model(&model.Empresa{}).Count(&empresas).Error; err != nil {
		return fmt.Errorf("empresas table: %w", err)
	}
	if err := db.Model(&model.User{}).Count(&users).Error; err != nil {
		return fmt.Errorf("users table: %w", err)
	}
	fmt.Printf("      db       %d empresas, %d users\n", empresas, users)
	return nil
}

func checkN8N(cfg *config.Config) error {
	if cfg.N8N.BaseURL == "" {
		return fmt.Errorf("N8N_BASE_URL is not set")
	}
	if cfg.N8N.APIKey == "" {
		return fmt.Errorf("N8N_API_KEY is not set")
	}

	client := n8n.NewClient(&cfg.N8N)
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return err
	}

	if cfg.N8N.TemplateID == "" {
		return fmt.Errorf("N8N_TEMPLATE_ID is not set")
	}
	if _, err := client.GetWorkflow(ctx, cfg.N8N.TemplateID); err != nil {
		return fmt.Errorf("template workflow %s: %w", cfg.N8N.TemplateID, err)
	}
	return nil
}

func checkGoogle(cfg *config.Config) error {
	if cfg.Google.ClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is not set")
	}
	if cfg.Google.ClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is not set")
	}
	if cfg.Google.RedirectURL == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URL is not set")
	}
	return nil
}
