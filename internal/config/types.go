// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（JWT 密钥）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 池配置在加载阶段整体校验（含目录挂载文本的逐行解析），
// 非法配置直接拒绝启动，绝不进入安置路径。
package config

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	History HistoryConfig `yaml:"history"`
	Pool    PoolConfig    `yaml:"pool"`
}

// ServerConfig HTTP API 服务配置
type ServerConfig struct {
	Port string `yaml:"port"` // 监听端口
}

// AuthConfig API 认证配置
//
// JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中。
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"-"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// RedisConfig 事件总线配置（URL 为空时禁用事件发布）
type RedisConfig struct {
	URL string `yaml:"url"` // redis://host:port/db
}

// HistoryConfig 安置审计存储配置（Path 为空时禁用审计记录）
type HistoryConfig struct {
	Path string `yaml:"path"` // SQLite DSN，如 file:/var/lib/buildpool/placements.db
}

// PoolConfig 执行主机池配置
//
// 对应外部可编辑的配置面：池名、Docker 端口、容量标签串、
// 单机并发上限、TLS 开关、凭据目录、目录挂载文本块。
type PoolConfig struct {
	Name              string        `yaml:"name"`
	DockerPort        int           `yaml:"docker_port"`
	Labels            string        `yaml:"labels"`        // 空白分隔的容量标签
	MaxExecutors      int           `yaml:"max_executors"` // 单机并发上限
	TLSEnabled        bool          `yaml:"tls_enabled"`
	CertDir           string        `yaml:"cert_dir"` // TLS 凭据目录（空则用默认目录并自动生成）
	Hosts             []string      `yaml:"hosts"`    // 执行主机地址列表
	DirectoryBindings string        `yaml:"directory_bindings"`
	Images            []ImageConfig `yaml:"images"`
}

// ImageConfig 预注册镜像配置
type ImageConfig struct {
	Image  string `yaml:"image"`
	Labels string `yaml:"labels"` // 空白分隔的附加标签
}
