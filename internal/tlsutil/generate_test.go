// Package tlsutil 证书生成测试
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateClientCerts 生成的证书可加载、由 CA 签发、带 ClientAuth 用途
func TestGenerateClientCerts(t *testing.T) {
	tmpDir := t.TempDir()

	opts := GenerateOptions{
		Organization: "Test Org",
		CertDir:      tmpDir,
	}
	require.NoError(t, GenerateClientCerts(opts))

	files := DefaultCertFiles(tmpDir)
	assert.True(t, files.CertsExist())

	// 证书/私钥可作为 TLS 密钥对加载
	_, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	require.NoError(t, err)

	// CA 可解析且为 CA 证书
	caPEM, err := os.ReadFile(files.CAFile)
	require.NoError(t, err)
	block, _ := pem.Decode(caPEM)
	require.NotNil(t, block)
	caCert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.True(t, caCert.IsCA)

	// 客户端证书由该 CA 签发且带 ClientAuth 用途
	certPEM, err := os.ReadFile(files.CertFile)
	require.NoError(t, err)
	block, _ = pem.Decode(certPEM)
	require.NotNil(t, block)
	clientCert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Contains(t, clientCert.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
	assert.NoError(t, clientCert.CheckSignatureFrom(caCert))
}

// TestEnsureClientCerts_Reuse 已有证书不重新生成
func TestEnsureClientCerts_Reuse(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultGenerateOptions()
	opts.CertDir = dir

	files, err := EnsureClientCerts(opts)
	require.NoError(t, err)

	before, err := os.ReadFile(files.CertFile)
	require.NoError(t, err)

	_, err = EnsureClientCerts(opts)
	require.NoError(t, err)

	after, err := os.ReadFile(files.CertFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestCertsExist_Missing 缺少文件视为不存在
func TestCertsExist_Missing(t *testing.T) {
	files := DefaultCertFiles(t.TempDir())
	assert.False(t, files.CertsExist())
}
