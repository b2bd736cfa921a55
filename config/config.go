package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Queue    QueueConfig    `mapstructure:"queue"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type GitHubConfig struct {
	Token          string `mapstructure:"token"`
	APIBaseURL     string `mapstructure:"api_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
	MaxInlineJobs int    `mapstructure:"max_inline_jobs"` // 立即执行策略的最大并发任务数
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type WebhookConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type AnalysisConfig struct {
	MaxSourceFiles int    `mapstructure:"max_source_files"` // 清单文件之外最多抓取的源码文件数
	DetectWorkers  int    `mapstructure:"detect_workers"`   // 单任务内并行检测的 goroutine 数
	ReportLocalDir string `mapstructure:"report_local_dir"` // OSS 未配置时报告的本地存储目录
	HistoryLimit   int    `mapstructure:"history_limit"`    // 历史记录返回条数上限
	MaxBatchRepos  int    `mapstructure:"max_batch_repos"`  // 批量提交仓库数上限
	FilterCap      int    `mapstructure:"filter_cap"`       // 每类送入 LLM 校验的 finding 上限
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults 填充未配置项的默认值
func applyDefaults(cfg *Config) {
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = "https://api.github.com"
	}
	if cfg.GitHub.TimeoutSeconds <= 0 {
		cfg.GitHub.TimeoutSeconds = 15
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = 30
	}
	if cfg.Queue.AnalysisQueue == "" {
		cfg.Queue.AnalysisQueue = "analysis_jobs"
	}
	if cfg.Queue.MaxWorkers <= 0 {
		cfg.Queue.MaxWorkers = 4
	}
	if cfg.Queue.MaxInlineJobs <= 0 {
		cfg.Queue.MaxInlineJobs = 4
	}
	if cfg.Webhook.TimeoutSeconds <= 0 {
		cfg.Webhook.TimeoutSeconds = 10
	}
	if cfg.Analysis.MaxSourceFiles <= 0 {
		cfg.Analysis.MaxSourceFiles = 50
	}
	if cfg.Analysis.DetectWorkers <= 0 {
		cfg.Analysis.DetectWorkers = 8
	}
	if cfg.Analysis.ReportLocalDir == "" {
		cfg.Analysis.ReportLocalDir = "data/reports"
	}
	if cfg.Analysis.HistoryLimit <= 0 {
		cfg.Analysis.HistoryLimit = 50
	}
	if cfg.Analysis.MaxBatchRepos <= 0 {
		cfg.Analysis.MaxBatchRepos = 10
	}
	if cfg.Analysis.FilterCap <= 0 {
		cfg.Analysis.FilterCap = 50
	}
}
