// Package tlsutil 提供 TLS 客户端证书自动生成能力
//
// 池开启 TLS 且未配置凭据文件时，在启动阶段自动生成自签名 CA
// 和客户端证书，用于对 Docker 守护进程做双向 TLS 认证。
// 生成的 CA 证书需由运维方分发到各执行主机的 Docker 信任目录。
package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// DefaultCertDir 默认证书目录
const DefaultCertDir = "/etc/buildpool/certs"

// CertFiles 证书文件路径
type CertFiles struct {
	CAFile   string // CA 证书
	CertFile string // 客户端证书
	KeyFile  string // 客户端私钥
}

// DefaultCertFiles 返回默认证书文件路径
func DefaultCertFiles(dir string) CertFiles {
	if dir == "" {
		dir = DefaultCertDir
	}
	return CertFiles{
		CAFile:   filepath.Join(dir, "ca.pem"),
		CertFile: filepath.Join(dir, "client.pem"),
		KeyFile:  filepath.Join(dir, "client-key.pem"),
	}
}

// CertsExist 检查证书文件是否全部存在
func (c CertFiles) CertsExist() bool {
	for _, f := range []string{c.CAFile, c.CertFile, c.KeyFile} {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// GenerateOptions 证书生成选项
type GenerateOptions struct {
	// Organization CA 组织名
	Organization string

	// CommonName 客户端证书 CN
	CommonName string

	// ValidFor 客户端证书有效期
	ValidFor time.Duration

	// CertDir 证书输出目录
	CertDir string

	// Force 是否覆盖已有证书
	Force bool
}

// DefaultGenerateOptions 返回默认选项
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Organization: "Buildpool",
		CommonName:   "buildpool client",
		ValidFor:     365 * 24 * time.Hour,
		CertDir:      DefaultCertDir,
		Force:        false,
	}
}

// EnsureClientCerts 确保客户端证书存在：如果不存在则自动生成
//
// 返回证书文件路径。
func EnsureClientCerts(opts GenerateOptions) (*CertFiles, error) {
	files := DefaultCertFiles(opts.CertDir)

	if !opts.Force && files.CertsExist() {
		log.Printf("[tls] client certificates already exist in %s", opts.CertDir)
		return &files, nil
	}

	log.Printf("[tls] auto-generating client certificates in %s ...", opts.CertDir)
	if err := GenerateClientCerts(opts); err != nil {
		return nil, err
	}
	log.Printf("[tls] client certificates generated successfully")
	return &files, nil
}

// GenerateClientCerts 生成 CA 证书 + 客户端证书
func GenerateClientCerts(opts GenerateOptions) error {
	if opts.CertDir == "" {
		opts.CertDir = DefaultCertDir
	}
	if opts.Organization == "" {
		opts.Organization = "Buildpool"
	}
	if opts.CommonName == "" {
		opts.CommonName = "buildpool client"
	}
	if opts.ValidFor == 0 {
		opts.ValidFor = 365 * 24 * time.Hour
	}

	if err := os.MkdirAll(opts.CertDir, 0755); err != nil {
		return fmt.Errorf("create cert dir: %w", err)
	}

	// 1. 生成 CA
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate CA key: %w", err)
	}

	caSerial, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	caTemplate := &x509.Certificate{
		SerialNumber: caSerial,
		Subject: pkix.Name{
			Organization: []string{opts.Organization},
			CommonName:   opts.Organization + " CA",
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour), // CA 10 年
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}

	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return fmt.Errorf("create CA cert: %w", err)
	}

	caCert, err := x509.ParseCertificate(caCertDER)
	if err != nil {
		return fmt.Errorf("parse CA cert: %w", err)
	}

	// 2. 生成客户端证书（由 CA 签发）
	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate client key: %w", err)
	}

	clientSerial, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	clientTemplate := &x509.Certificate{
		SerialNumber: clientSerial,
		Subject: pkix.Name{
			Organization: []string{opts.Organization},
			CommonName:   opts.CommonName,
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(opts.ValidFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	clientCertDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, &clientKey.PublicKey, caKey)
	if err != nil {
		return fmt.Errorf("create client cert: %w", err)
	}

	// 3. 写入文件
	files := DefaultCertFiles(opts.CertDir)

	// CA 证书（公开，644）
	if err := writePEM(files.CAFile, "CERTIFICATE", caCertDER, 0644); err != nil {
		return fmt.Errorf("write CA cert: %w", err)
	}

	// 客户端证书（公开，644）
	if err := writePEM(files.CertFile, "CERTIFICATE", clientCertDER, 0644); err != nil {
		return fmt.Errorf("write client cert: %w", err)
	}

	// 客户端私钥（敏感，600）
	keyBytes, err := x509.MarshalECPrivateKey(clientKey)
	if err != nil {
		return fmt.Errorf("marshal client key: %w", err)
	}
	if err := writePEM(files.KeyFile, "EC PRIVATE KEY", keyBytes, 0600); err != nil {
		return fmt.Errorf("write client key: %w", err)
	}

	log.Printf("[tls] generated files:")
	log.Printf("[tls]   CA cert:     %s", files.CAFile)
	log.Printf("[tls]   client cert: %s", files.CertFile)
	log.Printf("[tls]   client key:  %s", files.KeyFile)
	log.Printf("[tls]   valid for:   %s", opts.ValidFor)

	return nil
}

// writePEM 将 DER 数据以 PEM 格式写入文件
func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}
