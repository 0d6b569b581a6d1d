package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		AIRateLimit               float64 // requests per second, per user
		AIRateBurst               int
	}

	DatabaseConfig struct {
		Engine        string // postgres | bolt | mongo | memory
		Host          string
		Port          string
		User          string
		Password      string
		Name          string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		BoltPath      string
		MongoURI      string
	}

	AIConfig struct {
		Provider    string // ollama | openai | googleai
		Model       string
		BaseURL     string
		APIKey      string
		Temperature float64
		MaxTokens   int
		Timeout     time.Duration
	}

	AttendanceConfig struct {
		RiskThreshold float64
		SweepSchedule string // cron spec; empty disables the sweep
		StaffEmails   []string
	}

	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string

		Server     ServerConfig
		Database   DatabaseConfig
		AI         AIConfig
		Attendance AttendanceConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// DefaultFromEmail parses the configured sender; an invalid value falls back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig loads the configuration from the environment.
// ENV selects the environment (DEV by default, TEST, QA, PROD) and the variables prefix,
// e.g. DEV_DATABASE_ENGINE=bolt.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "SmartBackpack")
	v.SetDefault("secretKey", "k2t&9e!vzq4)hw+1b0$c-m8o@r3y^u6n_jx5f(s7p*d#gl")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "SmartBackpack <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.aiRateLimit", 0.5)
	v.SetDefault("server.aiRateBurst", 3)

	v.SetDefault("database.engine", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "smartbackpack")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "smartbackpack")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.boltPath", filepath.Join("data", "smartbackpack.db"))
	v.SetDefault("database.mongoURI", "mongodb://localhost:27017")

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.model", "mistral")
	v.SetDefault("ai.baseURL", "http://localhost:11434")
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.maxTokens", 1024)
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("attendance.riskThreshold", 0.66)
	v.SetDefault("attendance.sweepSchedule", "0 18 * * 1-5")
	v.SetDefault("attendance.staffEmails", "")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugAddress:              v.GetString("server.debugAddress"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
			AIRateLimit:               v.GetFloat64("server.aiRateLimit"),
			AIRateBurst:               v.GetInt("server.aiRateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			Name:          v.GetString("database.name"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			BoltPath:      v.GetString("database.boltPath"),
			MongoURI:      v.GetString("database.mongoURI"),
		},
		AI: AIConfig{
			Provider:    strings.ToLower(v.GetString("ai.provider")),
			Model:       v.GetString("ai.model"),
			BaseURL:     v.GetString("ai.baseURL"),
			APIKey:      v.GetString("ai.apiKey"),
			Temperature: v.GetFloat64("ai.temperature"),
			MaxTokens:   v.GetInt("ai.maxTokens"),
			Timeout:     v.GetDuration("ai.timeout"),
		},
		Attendance: AttendanceConfig{
			RiskThreshold: v.GetFloat64("attendance.riskThreshold"),
			SweepSchedule: v.GetString("attendance.sweepSchedule"),
			StaffEmails:   splitList(v.GetString("attendance.staffEmails")),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests: no env lookups, in-memory storage.
func NewTestConfig() *Config {
	return &Config{
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		AppName:         "SmartBackpack",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
			AIRateLimit:               100,
			AIRateBurst:               100,
		},
		Database: DatabaseConfig{Engine: "memory"},
		AI:       AIConfig{Provider: "ollama", Timeout: 5 * time.Second},
		Attendance: AttendanceConfig{
			RiskThreshold: 0.66,
			StaffEmails:   []string{"staff@test.test"},
		},
		defaultFromEmail: "noreply@test.test",
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
