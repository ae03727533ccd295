package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	LLM          LLMConfig          `mapstructure:"llm"`
	NewsAPI      NewsAPIConfig      `mapstructure:"newsapi"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Export       ExportConfig       `mapstructure:"export"`
	Conversation ConversationConfig `mapstructure:"conversation"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen     string        `mapstructure:"listen"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// LLMConfig describes the chat model used by the assistant
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMTPConfig contains outbound mail settings
type SMTPConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	From               string `mapstructure:"from"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// Missing lists the settings a send cannot do without.
func (s SMTPConfig) Missing() []string {
	var missing []string
	if strings.TrimSpace(s.Host) == "" {
		missing = append(missing, "host")
	}
	if s.Port <= 0 {
		missing = append(missing, "port")
	}
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username")
	}
	if s.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(s.FromAddress()) == "" {
		missing = append(missing, "from")
	}
	return missing
}

// FromAddress falls back to the username when no sender is configured.
func (s SMTPConfig) FromAddress() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

// ExportConfig controls where Markdown exports are written
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ConversationConfig bounds the history sent to the model
type ConversationConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

func (c ConversationConfig) Validate() error {
	if c.MaxHistory < 0 {
		return fmt.Errorf("conversation.max_history cannot be negative")
	}
	return nil
}

// legacyEnv maps the plain variable names used in .env files onto config keys.
var legacyEnv = map[string]string{
	"llm.api_key":     "OPENAI_API_KEY",
	"newsapi.api_key": "NEWS_API_KEY",
	"smtp.host":       "SMTP_HOST",
	"smtp.port":       "SMTP_PORT",
	"smtp.username":   "SMTP_USER",
	"smtp.password":   "SMTP_PASS",
	"smtp.from":       "SMTP_FROM",
}

// configKeys lists the dotted mapstructure keys of every leaf field in t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(f.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func envName(key string) string {
	return "NEWSGPT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.listen", ":10001")
	v.SetDefault("general.session_ttl", 12*time.Hour)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("newsapi.endpoint", "https://newsapi.org/v2/everything")
	v.SetDefault("newsapi.timeout", 60*time.Second)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("conversation.max_history", 5)
}

// LoadConfig loads config from file and environment. A missing file is fine;
// every value can come from the environment.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("NEWSGPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (NEWSGPT_*)
	// Unmarshal only sees keys viper already knows, so every leaf is bound explicitly.
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		names := []string{key, envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := config.Conversation.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
