package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"buildpool/internal/binding"
	"buildpool/internal/label"
	"buildpool/internal/pool"
)

// Config 解析并校验后的运行配置
type Config struct {
	Env     Environment
	Server  ServerConfig
	Auth    AuthConfig
	Log     LogConfig
	Redis   RedisConfig
	History HistoryConfig
	Pool    PoolConfig
}

// Load 加载配置
//
// 顺序：.env → APP_ENV 选择 configs/{env}.yaml → 环境变量覆盖 → 校验。
// 任何校验失败立即返回错误，调用方应拒绝启动。
func Load() (*Config, error) {
	// .env 缺失不是错误（生产环境通过 systemd EnvironmentFile 注入）
	_ = godotenv.Load()

	env := Environment(os.Getenv("APP_ENV"))
	if env == "" {
		env = EnvDevelopment
	}

	path := configPath(env)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data, env)
}

// Parse 解析 YAML 配置并应用环境变量覆盖
func Parse(data []byte, env Environment) (*Config, error) {
	var y YAMLConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg := &Config{
		Env:     env,
		Server:  y.Server,
		Auth:    y.Auth,
		Log:     y.Log,
		Redis:   y.Redis,
		History: y.History,
		Pool:    y.Pool,
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath 确定配置文件路径
//
// 优先级：CONFIG_DIR 环境变量 → 按 APP_ENV 的默认目录
// （prod → /etc/buildpool/，其余 → ./configs/）。
func configPath(env Environment) string {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		if env == EnvProduction {
			dir = "/etc/buildpool"
		} else {
			dir = "configs"
		}
	}
	return filepath.Join(dir, string(env)+".yaml")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Pool.DockerPort == 0 {
		cfg.Pool.DockerPort = 2375
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
}

// Validate 整体校验配置
//
// 对应配置编辑面的规则：池名必填、端口范围、单机并发下限、
// 开启认证必须提供密钥、目录挂载文本逐行合法。
func (c *Config) Validate() error {
	if c.Pool.Name == "" {
		return fmt.Errorf("pool: name is required")
	}
	if c.Pool.DockerPort < 1 || c.Pool.DockerPort > 65535 {
		return fmt.Errorf("pool: invalid docker port %d, must be between 1 and 65535", c.Pool.DockerPort)
	}
	if c.Pool.MaxExecutors < 1 {
		return fmt.Errorf("pool: invalid max executors %d, must be greater than or equal to 1", c.Pool.MaxExecutors)
	}
	if c.Pool.CertDir != "" && !c.Pool.TLSEnabled {
		return fmt.Errorf("pool: tls must be enabled when credentials are configured")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth: JWT_SECRET is required when auth is enabled")
	}
	for _, img := range c.Pool.Images {
		if img.Image == "" {
			return fmt.Errorf("pool: preconfigured image name is required")
		}
	}

	// 目录挂载文本在此整体校验，错误带行号
	if _, err := binding.Parse(c.Pool.DirectoryBindings); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	return nil
}

// PoolSettings 由配置构造池的静态设置
func (c *Config) PoolSettings() (pool.Settings, error) {
	binds, err := binding.Parse(c.Pool.DirectoryBindings)
	if err != nil {
		return pool.Settings{}, fmt.Errorf("pool: %w", err)
	}

	images := make([]pool.PreconfiguredImage, 0, len(c.Pool.Images))
	for _, img := range c.Pool.Images {
		images = append(images, pool.PreconfiguredImage{
			Image:  img.Image,
			Labels: label.ParseAtoms(img.Labels),
		})
	}

	settings := pool.Settings{
		Name:           c.Pool.Name,
		CapacityLabels: label.ParseAtoms(c.Pool.Labels),
		MaxExecutors:   c.Pool.MaxExecutors,
		Bindings:       binds,
		Images:         images,
	}
	if err := settings.Validate(); err != nil {
		return pool.Settings{}, err
	}
	return settings, nil
}
