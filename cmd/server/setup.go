package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/scalesync/server/internal/config"
	"github.com/scalesync/server/internal/garmin"
)

// runSetup performs the one-time interactive Garmin login and persists the
// session so steady-state syncs never block on terminal input. Configured
// credentials are tried first; the prompt is the last resort.
func runSetup(cfg *config.Config) error {
	client := garmin.NewClient(cfg.Garmin.TokenDir)

	ctx := context.Background()
	if err := client.Resume(ctx); err == nil {
		fmt.Println("A valid Garmin session is already persisted; nothing to do.")
		return nil
	}

	if cfg.Garmin.Email != "" && cfg.Garmin.Password != "" {
		if err := client.Login(ctx, cfg.Garmin.Email, cfg.Garmin.Password); err == nil {
			fmt.Printf("Logged in to Garmin as %s using configured credentials.\n", cfg.Garmin.Email)
			return nil
		}
		fmt.Println("Configured Garmin credentials were rejected; falling back to prompt.")
	}

	email, password, err := promptCredentials()
	if err != nil {
		return err
	}

	if err := client.Login(ctx, email, password); err != nil {
		return fmt.Errorf("garmin login: %w", err)
	}

	fmt.Printf("Logged in to Garmin as %s. Session persisted to %s.\n", email, cfg.Garmin.TokenDir)
	return nil
}

func promptCredentials() (email, password string, err error) {
	fmt.Print("Enter Garmin email address: ")
	reader := bufio.NewReader(os.Stdin)
	email, err = reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("read email: %w", err)
	}
	email = strings.TrimSpace(email)

	fmt.Print("Enter Garmin password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}

	return email, string(raw), nil
}
