// Package binding 目录挂载声明
//
// 池配置中以文本块声明统一应用到每个执行槽的目录挂载，
// 每行一条：hostDir[:containerDir][:access]，# 起注释。
// 本包负责文本与结构化挂载列表之间的转换和校验。
package binding

import (
	"fmt"
	"strings"
)

// Access 挂载访问模式
type Access string

const (
	// AccessRead 只读挂载
	AccessRead Access = "r"

	// AccessReadWrite 读写挂载
	AccessReadWrite Access = "rw"
)

// parseAccess 识别访问模式记号（大小写不敏感）
func parseAccess(s string) (Access, bool) {
	switch strings.ToLower(s) {
	case "r":
		return AccessRead, true
	case "rw":
		return AccessReadWrite, true
	}
	return "", false
}

// Binding 一条目录挂载声明
//
// 两个路径都必须是绝对路径；容器路径缺省等于主机路径，
// 访问模式缺省只读。
type Binding struct {
	HostPath      string `json:"host_path" yaml:"host_path"`
	ContainerPath string `json:"container_path" yaml:"container_path"`
	Access        Access `json:"access" yaml:"access"`
}

// String 返回规范文本形式 host:container:access
//
// 该形式可被 Parse 重新解析为相同的挂载声明。
func (b Binding) String() string {
	return b.HostPath + ":" + b.ContainerPath + ":" + string(b.Access)
}

// Format 将挂载列表输出为规范文本块（每行一条，保持顺序）
func Format(bindings []Binding) string {
	lines := make([]string, len(bindings))
	for i, b := range bindings {
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// ParseError 配置文本校验错误（带行号）
type ParseError struct {
	Line   int    // 1 起始的行号
	Text   string // 去掉注释后的行内容
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid directory binding (line %d): %s: %s", e.Line, e.Reason, e.Text)
}

// Parse 解析目录挂载文本块
//
// 空行和纯注释行忽略；首个非法行立即返回错误，不做部分累积。
// 返回的挂载列表保持输入顺序。
func Parse(text string) ([]Binding, error) {
	var bindings []Binding

	if strings.TrimSpace(text) == "" {
		return bindings, nil
	}

	for lineNum, rawLine := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := cleanLine(rawLine)
		if line == "" {
			continue
		}

		b, err := parseLine(lineNum+1, line)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	return bindings, nil
}

// parseLine 解析单行挂载声明
//
// 字段解析规则（按顺序）：
//  1. 三字段：containerDir 和 access 按字面使用，access 必须是 r/rw
//  2. 两字段：第二个字段若是合法访问记号则作为 access（containerDir=hostDir），
//     否则作为 containerDir，access 默认只读
//  3. 单字段：containerDir=hostDir，access 只读
func parseLine(lineNum int, line string) (Binding, error) {
	parts := strings.Split(line, ":")
	if len(parts) > 3 {
		return Binding{}, &ParseError{Line: lineNum, Text: line, Reason: "too many fields"}
	}

	hostDir := strings.TrimSpace(parts[0])
	var containerDir string
	var access Access

	switch len(parts) {
	case 3:
		containerDir = strings.TrimSpace(parts[1])
		a, ok := parseAccess(strings.TrimSpace(parts[2]))
		if !ok {
			return Binding{}, &ParseError{Line: lineNum, Text: line,
				Reason: "unsupported access statement, use r or rw"}
		}
		access = a
	case 2:
		second := strings.TrimSpace(parts[1])
		if a, ok := parseAccess(second); ok {
			containerDir = hostDir
			access = a
		} else {
			containerDir = second
			access = AccessRead
		}
	default:
		containerDir = hostDir
		access = AccessRead
	}

	if !strings.HasPrefix(hostDir, "/") || !strings.HasPrefix(containerDir, "/") {
		return Binding{}, &ParseError{Line: lineNum, Text: line, Reason: "use absolute paths"}
	}

	return Binding{HostPath: hostDir, ContainerPath: containerDir, Access: access}, nil
}

// cleanLine 去掉行尾注释和两侧空白
func cleanLine(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
