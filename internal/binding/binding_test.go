// Package binding 目录挂载解析测试
package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse_ThreeFields host:container:access 全量形式
func TestParse_ThreeFields(t *testing.T) {
	got, err := Parse("/data:/app/data:rw")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Binding{HostPath: "/data", ContainerPath: "/app/data", Access: AccessReadWrite}, got[0])
}

// TestParse_SingleField 容器路径与访问模式取默认值
func TestParse_SingleField(t *testing.T) {
	got, err := Parse("/data")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Binding{HostPath: "/data", ContainerPath: "/data", Access: AccessRead}, got[0])
}

// TestParse_TwoFields 第二字段的访问记号/容器路径歧义消解
func TestParse_TwoFields(t *testing.T) {
	// 第二字段是访问记号：作为 access，容器路径等于主机路径
	got, err := Parse("/data:rw")
	require.NoError(t, err)
	assert.Equal(t, Binding{HostPath: "/data", ContainerPath: "/data", Access: AccessReadWrite}, got[0])

	got, err = Parse("/data:R") // 大小写不敏感
	require.NoError(t, err)
	assert.Equal(t, Binding{HostPath: "/data", ContainerPath: "/data", Access: AccessRead}, got[0])

	// 第二字段是路径：作为容器路径，默认只读
	got, err = Parse("/data:/mnt/data")
	require.NoError(t, err)
	assert.Equal(t, Binding{HostPath: "/data", ContainerPath: "/mnt/data", Access: AccessRead}, got[0])
}

// TestParse_CommentsAndBlanks 注释与空行忽略，顺序保持
func TestParse_CommentsAndBlanks(t *testing.T) {
	text := `
# shared caches
/var/cache/apt:/var/cache/apt:rw

/etc/ssl/certs  # read-only trust store
`
	got, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/var/cache/apt", got[0].HostPath)
	assert.Equal(t, AccessReadWrite, got[0].Access)
	assert.Equal(t, "/etc/ssl/certs", got[1].HostPath)
	assert.Equal(t, AccessRead, got[1].Access)
}

// TestParse_RelativeContainerPath 相对路径报配置错误并指明行号
func TestParse_RelativeContainerPath(t *testing.T) {
	_, err := Parse("/rel:data")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "absolute")
}

// TestParse_InvalidAccess 非法访问记号报错
func TestParse_InvalidAccess(t *testing.T) {
	_, err := Parse("/data:/app:rwx")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, err.Error(), "r or rw")
}

// TestParse_TooManyFields 超过三字段报错
func TestParse_TooManyFields(t *testing.T) {
	_, err := Parse("/a:/b:rw:extra")
	assert.Error(t, err)
}

// TestParse_FailFast 首个非法行即失败，无部分结果
func TestParse_FailFast(t *testing.T) {
	got, err := Parse("/ok\nbad-path\n/also-ok")
	require.Error(t, err)
	assert.Nil(t, got)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

// TestParse_RoundTrip parse → format → parse 幂等
func TestParse_RoundTrip(t *testing.T) {
	text := "/data:/app/data:rw\n/etc/ssl/certs\n/cache:rw"
	first, err := Parse(text)
	require.NoError(t, err)

	second, err := Parse(Format(first))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestParse_Empty 空文本无挂载
func TestParse_Empty(t *testing.T) {
	got, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
