package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anchorswap/swapd/internal/core/application"
	"github.com/anchorswap/swapd/internal/core/ports"
	lndchannel "github.com/anchorswap/swapd/internal/infrastructure/channel/lnd"
	"github.com/anchorswap/swapd/internal/infrastructure/db"
	escrowclient "github.com/anchorswap/swapd/internal/infrastructure/escrow/anchor"
	timescheduler "github.com/anchorswap/swapd/internal/infrastructure/scheduler/gocron"
	"github.com/urfave/cli/v2"
)

type supportedType map[string]struct{}

var (
	supportedDbs = supportedType{
		"badger": {},
	}
)

type Config struct {
	Datadir  string
	LogLevel int

	DbType string
	DbDir  string

	EscrowUrl       string
	EscrowApiKey    string
	EscrowPageLimit int

	LndHost         string
	LndTLSCertPath  string
	LndMacaroonPath string

	ChannelTargetTime   int64
	PrivateChannels     bool
	EscrowPollInterval  int64
	SettleRetryInterval int64

	repo      ports.RepoManager
	escrow    ports.EscrowService
	channel   ports.ChannelService
	scheduler ports.SchedulerService
	svc       application.Service
}

func (c *Config) String() string {
	clone := *c
	if clone.EscrowApiKey != "" {
		clone.EscrowApiKey = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	defaultDatadir             = defaultAppDataDir("swapd")
	DefaultLogLevel            = 4
	defaultDbType              = "badger"
	defaultEscrowPageLimit     = 200
	defaultChannelTargetTime   = int64(1800)
	defaultEscrowPollInterval  = int64(5)
	defaultSettleRetryInterval = int64(5)
)

// env returns a list of strings prefixed with `SWAPD_`.
// This is used as a syntax sugar for defining env vars.
func env(values ...string) []string {
	envs := make([]string, len(values))

	for i, value := range values {
		envs[i] = fmt.Sprintf("SWAPD_%s", value)
	}

	return envs
}

var (
	Datadir = &cli.StringFlag{
		Usage: "Directory to store data",
		Name:  "datadir", EnvVars: env("DATADIR"),
		Value: defaultDatadir,
	}

	LogLevel = &cli.IntFlag{
		Usage: "Logging level (0-6, where 6 is trace)",
		Name:  "log-level", EnvVars: env("LOG_LEVEL"),
		Value: DefaultLogLevel,
	}

	DbType = &cli.StringFlag{
		Usage: "Database type (badger)",
		Name:  "db-type", EnvVars: env("DB_TYPE"),
		Value: defaultDbType,
	}

	EscrowUrl = &cli.StringFlag{
		Usage: "Escrow service API URL",
		Name:  "escrow-url", EnvVars: env("ESCROW_URL"),
	}

	EscrowApiKey = &cli.StringFlag{
		Usage: "Escrow service API key",
		Name:  "escrow-api-key", EnvVars: env("ESCROW_API_KEY"),
	}

	EscrowPageLimit = &cli.IntFlag{
		Usage: "Max number of escrows fetched while paging a by-hash lookup",
		Name:  "escrow-page-limit", EnvVars: env("ESCROW_PAGE_LIMIT"),
		Value: defaultEscrowPageLimit,
	}

	LndHost = &cli.StringFlag{
		Usage: "Channel engine (lnd) grpc address",
		Name:  "lnd-host", EnvVars: env("LND_HOST"),
	}

	LndTLSCertPath = &cli.StringFlag{
		Usage: "Path to the channel engine TLS certificate",
		Name:  "lnd-tls-cert-path", EnvVars: env("LND_TLS_CERT_PATH"),
	}

	LndMacaroonPath = &cli.StringFlag{
		Usage: "Path to the channel engine macaroon",
		Name:  "lnd-macaroon-path", EnvVars: env("LND_MACAROON_PATH"),
	}

	ChannelTargetTime = &cli.Int64Flag{
		Usage: "Desired channel funding time-to-confirmation in seconds",
		Name:  "channel-target-time", EnvVars: env("CHANNEL_TARGET_TIME"),
		Value: defaultChannelTargetTime,
	}

	PrivateChannels = &cli.BoolFlag{
		Usage: "Open private channels for swaps",
		Name:  "private-channels", EnvVars: env("PRIVATE_CHANNELS"),
	}

	EscrowPollInterval = &cli.Int64Flag{
		Usage: "Escrow polling interval in seconds",
		Name:  "escrow-poll-interval", EnvVars: env("ESCROW_POLL_INTERVAL"),
		Value: defaultEscrowPollInterval,
	}

	SettleRetryInterval = &cli.Int64Flag{
		Usage: "Settlement retry interval in seconds",
		Name:  "settle-retry-interval", EnvVars: env("SETTLE_RETRY_INTERVAL"),
		Value: defaultSettleRetryInterval,
	}
)

func AllFlags() []cli.Flag {
	return []cli.Flag{
		Datadir, LogLevel, DbType,
		EscrowUrl, EscrowApiKey, EscrowPageLimit,
		LndHost, LndTLSCertPath, LndMacaroonPath,
		ChannelTargetTime, PrivateChannels,
		EscrowPollInterval, SettleRetryInterval,
	}
}

func LoadConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{
		Datadir:             ctx.String(Datadir.Name),
		LogLevel:            ctx.Int(LogLevel.Name),
		DbType:              ctx.String(DbType.Name),
		EscrowUrl:           ctx.String(EscrowUrl.Name),
		EscrowApiKey:        ctx.String(EscrowApiKey.Name),
		EscrowPageLimit:     ctx.Int(EscrowPageLimit.Name),
		LndHost:             ctx.String(LndHost.Name),
		LndTLSCertPath:      ctx.String(LndTLSCertPath.Name),
		LndMacaroonPath:     ctx.String(LndMacaroonPath.Name),
		ChannelTargetTime:   ctx.Int64(ChannelTargetTime.Name),
		PrivateChannels:     ctx.Bool(PrivateChannels.Name),
		EscrowPollInterval:  ctx.Int64(EscrowPollInterval.Name),
		SettleRetryInterval: ctx.Int64(SettleRetryInterval.Name),
	}
	cfg.DbDir = filepath.Join(cfg.Datadir, "db")

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, ok := supportedDbs[c.DbType]; !ok {
		return fmt.Errorf("db type not supported, please select one of: %v", supportedDbs)
	}
	if c.EscrowUrl == "" {
		return fmt.Errorf("missing escrow api url")
	}
	if c.EscrowApiKey == "" {
		return fmt.Errorf("missing escrow api key")
	}
	if c.LndHost == "" {
		return fmt.Errorf("missing channel engine address")
	}
	if c.LndTLSCertPath == "" || c.LndMacaroonPath == "" {
		return fmt.Errorf("missing channel engine credentials")
	}
	if err := makeDirectoryIfNotExists(c.Datadir); err != nil {
		return fmt.Errorf("failed to create datadir: %s", err)
	}
	return nil
}

// AppService builds and wires the swap coordinator with its
// infrastructure, caching every constructed service.
func (c *Config) AppService() (application.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}

	if err := c.repoManager(); err != nil {
		return nil, err
	}
	if err := c.escrowService(); err != nil {
		return nil, err
	}
	if err := c.channelService(); err != nil {
		return nil, err
	}
	c.scheduler = timescheduler.NewScheduler()

	c.svc = application.NewService(
		c.escrow, c.channel, c.repo, c.scheduler,
		application.ChannelOptions{
			TargetTime: c.ChannelTargetTime,
			Private:    c.PrivateChannels,
		},
		time.Duration(c.EscrowPollInterval)*time.Second,
		time.Duration(c.SettleRetryInterval)*time.Second,
	)
	return c.svc, nil
}

// EscrowService exposes the escrow gateway alone, used by the onboarding
// subcommands that run without the whole daemon.
func (c *Config) EscrowService() (ports.EscrowService, error) {
	if err := c.escrowService(); err != nil {
		return nil, err
	}
	return c.escrow, nil
}

func (c *Config) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.repo != nil {
		c.repo.Close()
	}
}

func (c *Config) repoManager() error {
	repo, err := db.NewService(db.ServiceConfig{
		DataStoreType:   c.DbType,
		DataStoreConfig: []interface{}{c.DbDir, nil},
	})
	if err != nil {
		return err
	}
	c.repo = repo
	return nil
}

func (c *Config) escrowService() error {
	if c.escrow != nil {
		return nil
	}
	svc, err := escrowclient.NewService(escrowclient.Config{
		BaseUrl:   c.EscrowUrl,
		ApiKey:    c.EscrowApiKey,
		PageLimit: c.EscrowPageLimit,
	})
	if err != nil {
		return err
	}
	c.escrow = svc
	return nil
}

func (c *Config) channelService() error {
	svc, err := lndchannel.NewService(lndchannel.Config{
		Host:         c.LndHost,
		TLSCertPath:  c.LndTLSCertPath,
		MacaroonPath: c.LndMacaroonPath,
	})
	if err != nil {
		return err
	}
	c.channel = svc
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func defaultAppDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}
