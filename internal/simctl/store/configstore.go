package store

import (
	"context"
	"encoding/json"

	"github.com/simulationcontrol/simctl/pkg/config"
	"github.com/simulationcontrol/simctl/pkg/errors"
)

// settingsKey is the reserved key for runtime API settings. It lives in the
// same store file as job records; the repository skips it when listing.
const settingsKey = "api_configuration"

// APISettings are the runtime-editable server endpoints, persisted alongside
// jobs so `simctl config set-address` survives restarts without touching the
// YAML config file.
type APISettings struct {
	APIBaseURL    string `json:"apiBaseUrl"`
	StreamBaseURL string `json:"streamBaseUrl"`
}

// ConfigStore persists APISettings in the shared key-value store
type ConfigStore struct {
	store Store
}

func NewConfigStore(s Store) *ConfigStore {
	return &ConfigStore{store: s}
}

// Get returns the stored settings, or nil when none have been saved
func (c *ConfigStore) Get(ctx context.Context) (*APISettings, error) {
	data, ok, err := c.store.Get(ctx, settingsKey)
	if err != nil {
		return nil, errors.WrapConfigError("load api settings", err)
	}
	if !ok {
		return nil, nil
	}
	var settings APISettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, errors.WrapConfigError("decode api settings", err)
	}
	return &settings, nil
}

// Save stores the settings, replacing any previous value
func (c *ConfigStore) Save(ctx context.Context, settings *APISettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return errors.WrapConfigError("encode api settings", err)
	}
	if err := c.store.Set(ctx, settingsKey, data); err != nil {
		return errors.WrapConfigError("save api settings", err)
	}
	return nil
}

// SetAddress derives both base URLs from a bare host[:port] address and
// persists them as the active settings.
func (c *ConfigStore) SetAddress(ctx context.Context, address string) (*APISettings, error) {
	cfg := config.DefaultConfig
	if err := cfg.SetBaseAddress(address); err != nil {
		return nil, errors.WrapConfigError("address", err)
	}
	settings := &APISettings{
		APIBaseURL:    cfg.API.BaseURL,
		StreamBaseURL: cfg.Stream.BaseURL,
	}
	if err := c.Save(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Reset removes the stored settings so the YAML config applies again
func (c *ConfigStore) Reset(ctx context.Context) error {
	if err := c.store.Remove(ctx, settingsKey); err != nil {
		return errors.WrapConfigError("reset api settings", err)
	}
	return nil
}

// Apply overlays the stored settings onto cfg. Empty fields leave the
// corresponding config value untouched.
func (s *APISettings) Apply(cfg *config.ClientConfig) {
	if s == nil {
		return
	}
	if s.APIBaseURL != "" {
		cfg.API.BaseURL = s.APIBaseURL
	}
	if s.StreamBaseURL != "" {
		cfg.Stream.BaseURL = s.StreamBaseURL
	}
}
