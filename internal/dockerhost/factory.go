package dockerhost

import (
	"fmt"

	"github.com/moby/moby/client"

	"buildpool/internal/pool"
	"buildpool/internal/tlsutil"
)

// ClientBuilder 按主机地址构建认证好的 Docker API 客户端
//
// 凭据/TLS 解析是可插拔策略：核心只依赖"给定地址返回客户端"的能力。
type ClientBuilder interface {
	Client(addr string) (*client.Client, error)
}

// Factory 默认客户端工厂
//
// 地址形如 tcp://<host>:<port>；开启 TLS 时使用客户端证书做双向认证。
type Factory struct {
	// Port Docker API 端口
	Port int

	// TLSEnabled 是否对主机使用 TLS
	TLSEnabled bool

	// Certs TLS 凭据文件（TLSEnabled 时必须）
	Certs tlsutil.CertFiles
}

var _ ClientBuilder = (*Factory)(nil)

// Client 为指定主机构建 Docker API 客户端
func (f *Factory) Client(addr string) (*client.Client, error) {
	opts := []client.Opt{
		client.WithHost(fmt.Sprintf("tcp://%s:%d", addr, f.Port)),
	}
	if f.TLSEnabled {
		opts = append(opts, client.WithTLSClientConfig(f.Certs.CAFile, f.Certs.CertFile, f.Certs.KeyFile))
	}

	cli, err := client.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build docker client for %s: %w", addr, err)
	}
	return cli, nil
}

// BuildHosts 为地址列表构建主机集合
func BuildHosts(addrs []string, poolName string, builder ClientBuilder) ([]pool.Host, error) {
	hosts := make([]pool.Host, 0, len(addrs))
	for _, addr := range addrs {
		cli, err := builder.Client(addr)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, NewHost(addr, poolName, cli))
	}
	return hosts, nil
}
