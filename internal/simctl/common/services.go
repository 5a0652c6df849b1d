package common

import (
	"context"
	"fmt"

	"github.com/simulationcontrol/simctl/internal/simctl/api"
	"github.com/simulationcontrol/simctl/internal/simctl/poller"
	"github.com/simulationcontrol/simctl/internal/simctl/store"
	"github.com/simulationcontrol/simctl/internal/simctl/stream"
	"github.com/simulationcontrol/simctl/internal/simctl/sync"
	"github.com/simulationcontrol/simctl/pkg/config"
	"github.com/simulationcontrol/simctl/pkg/logger"
)

var (
	// Config is loaded by the root command's PersistentPreRun
	Config *config.ClientConfig
	// ConfigSource is the path the config was loaded from, empty when
	// built-in defaults apply
	ConfigSource string
	ConfigPath   string
	JSONOutput   bool
)

// Services holds the wired client stack. Built once per process; commands
// fetch it via GetServices.
type Services struct {
	Store       store.Store
	Repository  *store.Repository
	ConfigStore *store.ConfigStore
	Client      *api.Client
	Channel     *stream.Channel
	Scheduler   *poller.Scheduler
	Coordinator *sync.Coordinator
}

var services *Services

// LoadConfig loads the YAML configuration and applies the logging level.
// Called from the root command before any subcommand runs.
func LoadConfig() error {
	cfg, source, err := config.Load(ConfigPath)
	if err != nil {
		return err
	}
	Config = cfg
	ConfigSource = source

	level, lvlErr := logger.ParseLevel(cfg.Logging.Level)
	if lvlErr == nil {
		logger.SetLevel(level)
	}
	return nil
}

// GetServices builds the client stack on first use. Stored API settings
// override the YAML endpoints, so `simctl config set-address` takes effect
// without editing the config file.
func GetServices(ctx context.Context) (*Services, error) {
	if services != nil {
		return services, nil
	}
	if Config == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}

	var kv store.Store
	switch Config.Storage.Backend {
	case "", "file":
		kv = store.NewFileStore(Config.StorePath())
	case "memory":
		kv = store.NewMemStore()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", Config.Storage.Backend)
	}

	configStore := store.NewConfigStore(kv)
	settings, err := configStore.Get(ctx)
	if err != nil {
		logger.Warn("ignoring unreadable stored API settings", "error", err)
	}
	settings.Apply(Config)

	repo := store.NewRepository(kv, nil)
	client := api.NewClient(Config.API, nil)
	channel := stream.NewChannel(Config.Stream, nil)
	scheduler := poller.NewScheduler(Config.Polling, client, nil)
	coordinator := sync.NewCoordinator(repo, client, channel, scheduler, nil)

	services = &Services{
		Store:       kv,
		Repository:  repo,
		ConfigStore: configStore,
		Client:      client,
		Channel:     channel,
		Scheduler:   scheduler,
		Coordinator: coordinator,
	}
	return services, nil
}

// Shutdown stops background tracking and closes the stream
func Shutdown() {
	if services == nil {
		return
	}
	services.Scheduler.Stop()
	services.Channel.Disconnect()
}
