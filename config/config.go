package config

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"

	"youtube-notification-bot/youtube"
)

const (
	DefaultFile       = "config.json"
	NotificationsPath = "/youtube/notifications"
)

var ErrConfigurationMissing = errors.New("configuration missing")

type Config struct {
	TelegramToken string        `name:"telegram-token" env:"TELEGRAM_TOKEN" help:"Telegram bot token."`
	Host          string        `name:"host" env:"HOST" help:"Public base url of the bot (with scheme), used for the hub callback."`
	Port          int           `name:"port" env:"PORT" default:"5050" help:"Listening port."`
	DBAddress     string        `name:"db-address" env:"DB_ADDRESS" default:":5432" help:"Postgres address."`
	DBUser        string        `name:"db-user" env:"DB_USER" default:"bot" help:"Postgres user."`
	DBPassword    string        `name:"db-password" env:"DB_PASSWORD" help:"Postgres password."`
	DBName        string        `name:"db-name" env:"DB_NAME" default:"bot" help:"Postgres database."`
	DBTimeout     time.Duration `name:"db-timeout" env:"DB_TIMEOUT" default:"1m" help:"Timeout of a single database call."`
	RedisAddress  string        `name:"redis-address" env:"REDIS_ADDRESS" help:"Redis address for feed locks. In-process locks are used when empty."`
	YoutubeAPIKey string        `name:"youtube-api-key" env:"YOUTUBE_API_KEY" help:"YouTube Data API key. Enables API channel lookup."`
	HubSecret     string        `name:"hub-secret" env:"HUB_SECRET" help:"Secret the hub signs notifications with."`
	LeaseSeconds  int           `name:"lease-seconds" env:"LEASE_SECONDS" help:"Lease requested from the hub. The hub default is used when zero."`
	Debug         bool          `name:"debug" env:"DEBUG" help:"Enable debug logging."`
}

// Load reads .env into the environment, then parses args, environment and the optional json config file.
// The config file may contain comments.
func Load(args []string, file string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("[config.Load]: unable to load .env file", "error", err)
	}
	var cfg Config
	options := []kong.Option{
		kong.Name("youtube-notification-bot"),
		kong.Description("Telegram bot notifying chats about new videos of YouTube channels."),
	}
	if _, err := os.Stat(file); err == nil {
		options = append(options, kong.Configuration(jsoncLoader, file))
	}
	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to build config parser")
	}
	_, err = parser.Parse(args)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse config")
	}
	return &cfg, nil
}

func jsoncLoader(r io.Reader) (kong.Resolver, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config file")
	}
	return kong.JSON(bytes.NewReader(jsonc.ToJSON(data)))
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.WithMessage(ErrConfigurationMissing, "TELEGRAM_TOKEN is not set")
	}
	if c.Host == "" {
		return errors.WithMessage(ErrConfigurationMissing, "HOST is not set")
	}
	return nil
}

func (c *Config) CallbackURL() string {
	return fmt.Sprintf(youtube.HubCallbackURLFormat, c.Host, c.Port, NotificationsPath)
}

func (c *Config) ListenAddress() string {
	return fmt.Sprintf(":%v", c.Port)
}
