package cmd

import (
	"fmt"
	"os"

	"claudebridge/internal/config"
	"claudebridge/internal/credstore"
	"claudebridge/internal/oauth"
	"claudebridge/internal/provider"
	"claudebridge/pkg/logging"
)

// app bundles the wired components every command needs.
type app struct {
	cfg      config.Config
	store    credstore.Store
	manager  *oauth.Manager
	provider *provider.Provider
}

// setupApp loads configuration, initializes logging and wires the credential
// store, the token manager and the provider together.
func setupApp() (*app, error) {
	configPath := configPathFlag
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logging.Init(logging.ParseLevel(level), os.Stderr)

	store, err := buildStore(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	manager, err := oauth.NewManager(oauth.ManagerConfig{Store: store})
	if err != nil {
		return nil, err
	}

	prov, err := provider.New(provider.Config{
		Resolver:     manager,
		DefaultModel: cfg.Model.Name,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store, manager: manager, provider: prov}, nil
}

// buildStore picks the credential store backend from configuration.
func buildStore(creds config.Credentials) (credstore.Store, error) {
	switch creds.Store {
	case config.StoreFile:
		if creds.Path != "" {
			return credstore.NewFileStoreWithPath(creds.Path), nil
		}
		return credstore.NewFileStore()
	case config.StoreKeychain:
		return credstore.NewKeychainStore()
	case config.StoreAuto, "":
		if creds.Path != "" {
			return credstore.NewFileStoreWithPath(creds.Path), nil
		}
		return credstore.DefaultStore()
	default:
		return nil, fmt.Errorf("unknown credential store %q", creds.Store)
	}
}

// chatOptions converts the configured model defaults into per-call options.
func (a *app) chatOptions(model string) provider.ChatOptions {
	opts := provider.ChatOptions{
		Model:       model,
		MaxTokens:   a.cfg.Model.MaxTokens,
		Temperature: a.cfg.Model.Temperature,
	}
	if opts.Model == "" {
		opts.Model = a.cfg.Model.Name
	}
	return opts
}
