package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// DiscordToken — токен бота.
	DiscordToken string
	// TicketCategoryID — категория, в которой создаются тикет-каналы.
	TicketCategoryID string
	// StaffRoleID — роль, дающая право claim/close/delete/reopen.
	StaffRoleID string
	// LogChannelID — канал аудита. Пустой — аудит отключён.
	LogChannelID string
	// GuildID — гильдия для регистрации slash-команд (пустой — глобально).
	GuildID string

	// TranscriptsDir и PublicBaseURL — куда писать транскрипты и как строить
	// публичные ссылки на них.
	TranscriptsDir string
	PublicBaseURL  string

	// EventBrokers/EventTopic — если заданы, лайфцикл-события тикетов
	// дублируются в Kafka (best-effort).
	EventBrokers string
	EventTopic   string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:  getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort: firstEnv("APP_PORT", "HTTP_PORT", "8099"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DiscordToken:     getEnv("DISCORD_TOKEN", ""),
		TicketCategoryID: getEnv("TICKET_CATEGORY_ID", ""),
		StaffRoleID:      getEnv("TICKET_STAFF_ROLE_ID", ""),
		LogChannelID:     getEnv("TICKET_LOG_CHANNEL_ID", ""),
		GuildID:          getEnv("DISCORD_GUILD_ID", ""),

		TranscriptsDir: getEnv("TRANSCRIPTS_DIR", "transcripts"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),

		EventBrokers: getEnv("TICKET_EVENTS_BROKERS", ""),
		EventTopic:   getEnv("TICKET_EVENTS_TOPIC", ""),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "ticket_bot")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("config: DISCORD_TOKEN is required")
	}
	if c.TicketCategoryID == "" || c.StaffRoleID == "" {
		return errors.New("config: TICKET_CATEGORY_ID and TICKET_STAFF_ROLE_ID are required")
	}
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// TranscriptURL строит публичную ссылку на файл транскрипта.
func (c *Config) TranscriptURL(filename string) string {
	base := c.PublicBaseURL
	if base == "" {
		base = "http://localhost:" + c.HTTPPort
	}
	return base + "/transcripts/" + url.PathEscape(filename)
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
