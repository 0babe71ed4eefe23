// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// EnvPrefix 是环境变量覆盖的前缀，例如 TUTORVERSE_LLM_API_KEY。
const EnvPrefix = "TUTORVERSE"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Tutor        TutorConfig        `mapstructure:"tutor"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port" validate:"required"`
	Mode           string   `mapstructure:"mode" validate:"oneof=debug release test"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。api_key 只从配置文件或环境变量注入。
type LLMConfig struct {
	APIKey        string              `mapstructure:"api_key"`
	BaseURL       string              `mapstructure:"base_url" validate:"required,url"`
	Model         string              `mapstructure:"model" validate:"required"`
	Timeout       time.Duration       `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries    int                 `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryBackoff  time.Duration       `mapstructure:"retry_backoff" validate:"gte=0"`
	MaxToolRounds int                 `mapstructure:"max_tool_rounds" validate:"gte=1,lte=10"`
	Generation    LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP        float64 `mapstructure:"top_p" validate:"gte=0,lte=1"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
}

// TutorConfig 控制单轮问答的校验与时限。
type TutorConfig struct {
	MaxQueryLength int           `mapstructure:"max_query_length" validate:"gt=0"`
	HistoryLimit   int           `mapstructure:"history_limit" validate:"gte=0"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout" validate:"gt=0"`
}

// ConversationConfig 控制会话在 Redis 中的缓存行为。
type ConversationConfig struct {
	TTL         time.Duration `mapstructure:"ttl" validate:"gt=0"`
	MaxMessages int           `mapstructure:"max_messages" validate:"gte=2"`
	LockTTL     time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
	Greeting    string        `mapstructure:"greeting" validate:"required"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。未启用时不记录问答流水。
type MySQLConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string `mapstructure:"topic" validate:"required_if=Enabled true"`
	GroupID string `mapstructure:"group_id"`
}

// DefaultGreeting 是新会话的第一条助手消息。
const DefaultGreeting = "Hello there, curious learner! I'm TutorVerse, your friendly guide to the wonders of Math and Physics. What amazing question do you have for me today?"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	// 没有默认值的键不会被 Unmarshal 从环境变量中读取，因此这里显式注册空值。
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.retry_backoff", 500*time.Millisecond)
	v.SetDefault("llm.max_tool_rounds", 5)
	v.SetDefault("llm.generation.temperature", 0.2)

	v.SetDefault("tutor.max_query_length", 1000)
	v.SetDefault("tutor.history_limit", 20)
	v.SetDefault("tutor.turn_timeout", 90*time.Second)

	v.SetDefault("conversation.ttl", 7*24*time.Hour)
	v.SetDefault("conversation.max_messages", 50)
	v.SetDefault("conversation.lock_ttl", 2*time.Minute)
	v.SetDefault("conversation.greeting", DefaultGreeting)

	v.SetDefault("database.mysql.enabled", false)
	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "tutor-turns")
	v.SetDefault("kafka.group_id", "tutorverse-turn-recorder")
}

// Load 从指定路径读取 YAML 配置，叠加默认值和 TUTORVERSE_ 前缀的环境变量，并做校验。
// 配置文件不存在时只使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

// Init 加载配置到全局 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
