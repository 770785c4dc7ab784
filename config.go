package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SupportPalAPIURL string `yaml:"supportpal_api_url"`
	SupportPalAPIKey string `yaml:"supportpal_api_key"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	SlackBotToken      string `yaml:"slack_bot_token"`
	SlackChannelID     string `yaml:"slack_channel_id"`
	SlackSigningSecret string `yaml:"slack_signing_secret"`

	DBPath               string `yaml:"db_path"`
	ScheduleCron         string `yaml:"schedule_cron"`
	DefaultLookbackHours int    `yaml:"default_lookback_hours"`

	ServerHost string `yaml:"server_host"`
	ServerPort int    `yaml:"server_port"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.SupportPalAPIURL, "SUPPORTPAL_API_URL")
	envOverride(&cfg.SupportPalAPIKey, "SUPPORTPAL_API_KEY")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.SlackSigningSecret, "SLACK_SIGNING_SECRET")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ScheduleCron, "SCHEDULE_CRON")
	envOverrideInt(&cfg.DefaultLookbackHours, "DEFAULT_LOOKBACK_HOURS")
	envOverride(&cfg.ServerHost, "HOST")
	envOverrideInt(&cfg.ServerPort, "PORT")

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./tars.db"
	}
	if cfg.ScheduleCron == "" {
		cfg.ScheduleCron = "0 9 * * *"
	}
	if cfg.DefaultLookbackHours == 0 {
		cfg.DefaultLookbackHours = 24
	}
	if cfg.ServerHost == "" {
		cfg.ServerHost = "0.0.0.0"
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = 5000
	}

	// Validate required fields
	required := map[string]string{
		"supportpal_api_url": cfg.SupportPalAPIURL,
		"supportpal_api_key": cfg.SupportPalAPIKey,
		"slack_bot_token":    cfg.SlackBotToken,
		"slack_channel_id":   cfg.SlackChannelID,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}
	if !strings.HasPrefix(cfg.SupportPalAPIURL, "http://") && !strings.HasPrefix(cfg.SupportPalAPIURL, "https://") {
		log.Fatalf("supportpal_api_url must start with http:// or https://")
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.DefaultLookbackHours < 1 || cfg.DefaultLookbackHours > maxLookbackHours {
		log.Fatalf("invalid default_lookback_hours '%d': must be between 1 and %d", cfg.DefaultLookbackHours, maxLookbackHours)
	}
	if strings.TrimSpace(cfg.ScheduleCron) != "" {
		if _, err := parseSchedule(cfg.ScheduleCron); err != nil {
			log.Fatalf("invalid schedule_cron '%s': %v", cfg.ScheduleCron, err)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
