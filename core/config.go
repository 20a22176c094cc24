package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default), TEST, QA, PROD
	AppName  string
	Build    string

	SecretKey        string
	Timezone         string // IANA name; day boundary for streak computation
	FrontendBaseURL  string
	DefaultFromEmail mail.Address
	SendgridAPIKey   string
	RollbarToken     string

	Server struct {
		Host                      string
		Port                      int
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	RateLimit struct {
		Disable       bool
		AuthPerMinute int
		PerHour       int
	}
}

func (c *Config) IsProd() bool { return c.Env == "PROD" }

func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) DatabaseAddress() string {
	return fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port)
}

// Location resolves the configured timezone; falls back to UTC on a bad name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewConfig loads the app configuration from the environment.
// An optional `config/.env.<env>` file is loaded first if it exists.
func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "LearningCloud")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "h2(h!x)#*c2(#yg4h^$cegm2emy-poq5-wer)enb$+57")
	conf.SetDefault("timezone", "UTC")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("serverHost", "")
	conf.SetDefault("serverPort", 8000)
	conf.SetDefault("jwtExpirationDelta", 4*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseName", "learningcloud")
	conf.SetDefault("databaseUser", "")
	conf.SetDefault("databasePassword", "")
	conf.SetDefault("databaseAdminUser", "")
	conf.SetDefault("databaseAdminPassword", "")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", 5432)
	conf.SetDefault("databaseDisableTLS", true)

	conf.SetDefault("redisAddr", "localhost:6379")
	conf.SetDefault("redisPassword", "")
	conf.SetDefault("redisDB", 0)

	conf.SetDefault("rateLimitDisable", false)
	conf.SetDefault("authRateLimitPerMinute", 5)
	conf.SetDefault("rateLimitPerHour", 1000)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("rateLimitDisable", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c := &Config{
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("testMode"),
		Env:             env,
		AppName:         conf.GetString("appName"),
		Build:           conf.GetString("build"),
		SecretKey:       conf.GetString("secretKey"),
		Timezone:        conf.GetString("timezone"),
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("appName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		SendgridAPIKey: conf.GetString("sendgridApiKey"),
		RollbarToken:   conf.GetString("rollbarToken"),
	}
	c.Server.Host = conf.GetString("serverHost")
	c.Server.Port = conf.GetInt("serverPort")
	c.Server.JWTExpirationDelta = conf.GetDuration("jwtExpirationDelta")
	c.Server.JWTRefreshExpirationDelta = conf.GetDuration("jwtRefreshExpirationDelta")

	c.Database.Engine = conf.GetString("databaseEngine")
	c.Database.Name = conf.GetString("databaseName")
	c.Database.User = conf.GetString("databaseUser")
	c.Database.Password = conf.GetString("databasePassword")
	c.Database.AdminUser = conf.GetString("databaseAdminUser")
	c.Database.AdminPassword = conf.GetString("databaseAdminPassword")
	c.Database.Host = conf.GetString("databaseHost")
	c.Database.Port = conf.GetInt("databasePort")
	c.Database.DisableTLS = conf.GetBool("databaseDisableTLS")

	c.Redis.Addr = conf.GetString("redisAddr")
	c.Redis.Password = conf.GetString("redisPassword")
	c.Redis.DB = conf.GetInt("redisDB")

	c.RateLimit.Disable = conf.GetBool("rateLimitDisable")
	c.RateLimit.AuthPerMinute = conf.GetInt("authRateLimitPerMinute")
	c.RateLimit.PerHour = conf.GetInt("rateLimitPerHour")
	return c
}
