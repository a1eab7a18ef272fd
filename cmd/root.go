// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

// Package cmd implements the adtoken command line interface.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/azure/adtoken/pkg/adal"
	"github.com/azure/adtoken/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// GlobalOptions carries the flags shared by every command.
type GlobalOptions struct {
	EnableDebugLogging  bool
	EnablePiiLogging    bool
	NoValidateAuthority bool
}

func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "adtoken",
		Short: "adtoken - acquire and manage directory access tokens",
		Long: `adtoken - acquire and manage directory access tokens

Sign in once with "adtoken login", then mint tokens for any resource:

	$ adtoken login
	$ adtoken token --resource https://management.core.windows.net/

Settings come from ` + "`adtoken config`" + `, the environment, or a .env file
in the current directory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine, settings fall back to the
			// environment and the config file.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Printf("loading .env file: %v", err)
			}

			log.SetFlags(log.LstdFlags | log.Lshortfile)

			if opts.EnableDebugLogging {
				adal.SetPiiLogging(opts.EnablePiiLogging)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
		SilenceUsage: true,
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.Flags().BoolP("help", "h", false, "Help for "+cmd.Name())
	cmd.PersistentFlags().BoolVar(&opts.EnableDebugLogging, "debug", false, "Enables debug/diagnostic logging")
	cmd.PersistentFlags().BoolVar(&opts.EnablePiiLogging, "debug-pii", false,
		"Includes identifiers and endpoints in debug logging")
	cmd.PersistentFlags().BoolVar(&opts.NoValidateAuthority, "no-validate-authority", false,
		"Skip authority validation against the instance discovery metadata")

	cmd.AddCommand(loginCmd(opts))
	cmd.AddCommand(tokenCmd(opts))
	cmd.AddCommand(logoutCmd(opts))
	cmd.AddCommand(configCmd(opts))

	return cmd
}

// settings is the resolved client registration the commands operate with.
type settings struct {
	Authority   string `json:"authority"`
	ClientID    string `json:"clientId"`
	RedirectURI string `json:"redirectUri"`
	Resource    string `json:"resource"`
}

const (
	settingsSection = "auth"

	envAuthority   = "ADTOKEN_AUTHORITY"
	envClientID    = "ADTOKEN_CLIENT_ID"
	envRedirectURI = "ADTOKEN_REDIRECT_URI"
	envResource    = "ADTOKEN_RESOURCE"
)

func configFilePath() (string, error) {
	configDir, err := config.GetUserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

func tokenCacheFilePath() (string, error) {
	configDir, err := config.GetUserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "tokens.json"), nil
}

func loadConfig() (config.Config, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, err
	}

	manager := config.NewFileConfigManager(config.NewManager())
	cfg, err := manager.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.NewEmptyConfig(), nil
		}

		return nil, err
	}

	return cfg, nil
}

func saveConfig(cfg config.Config) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	manager := config.NewFileConfigManager(config.NewManager())
	return manager.Save(cfg, path)
}

// loadSettings resolves the client registration, environment variables taking
// precedence over the config file.
func loadSettings() (*settings, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	resolved := &settings{}
	if _, err := cfg.GetSection(settingsSection, resolved); err != nil {
		return nil, err
	}

	if v := os.Getenv(envAuthority); v != "" {
		resolved.Authority = v
	}
	if v := os.Getenv(envClientID); v != "" {
		resolved.ClientID = v
	}
	if v := os.Getenv(envRedirectURI); v != "" {
		resolved.RedirectURI = v
	}
	if v := os.Getenv(envResource); v != "" {
		resolved.Resource = v
	}

	if resolved.Authority == "" {
		resolved.Authority = "https://login.microsoftonline.com/common"
	}

	if resolved.ClientID == "" {
		return nil, fmt.Errorf(
			"no client id configured, set %s or run 'adtoken config set auth.clientId <id>'", envClientID)
	}

	return resolved, nil
}

// newAuthContext builds an AuthenticationContext backed by the on-disk token
// cache.
func newAuthContext(opts *GlobalOptions, webUI adal.WebUI) (*adal.AuthenticationContext, *settings, error) {
	resolved, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}

	cachePath, err := tokenCacheFilePath()
	if err != nil {
		return nil, nil, err
	}

	store, err := adal.NewFileStore(cachePath)
	if err != nil {
		return nil, nil, err
	}

	cache := adal.NewTokenCache()
	cache.SetObserver(store)

	validation := adal.AuthorityValidationTrue
	if opts.NoValidateAuthority {
		validation = adal.AuthorityValidationFalse
	}

	contextOpts := []adal.ContextOption{adal.WithTokenCache(cache)}
	if webUI != nil {
		contextOpts = append(contextOpts, adal.WithWebUI(webUI))
	}

	authContext, err := adal.NewAuthenticationContext(resolved.Authority, validation, contextOpts...)
	if err != nil {
		return nil, nil, err
	}

	return authContext, resolved, nil
}
