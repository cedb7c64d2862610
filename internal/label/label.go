// Package label 标签表达式
//
// 任务通过布尔标签表达式声明其运行限制（如 docker/ubuntu && linux）。
// 表达式由原子标签（Atom）和组合节点（And/Or/Not 等）构成，
// 通过 Matches 判断某个候选标签集合能否满足表达式。
//
// 组合节点统一实现 Composite 接口，遍历时只需询问 Children()，
// 不依赖反射即可发现表达式中出现的全部原子。
package label

import (
	"sort"
	"strings"
)

// Atom 原子标签
//
// 原子是表达式树的叶子节点，匹配规则为集合成员判断。
type Atom string

// Matches 判断候选集合是否包含该原子
func (a Atom) Matches(set Set) bool {
	return set.Contains(a)
}

func (a Atom) String() string {
	return string(a)
}

// Expression 标签表达式节点
//
// 所有表达式节点（原子和组合节点）实现此接口。
type Expression interface {
	// Matches 以候选标签集合为真值赋值，求表达式的值
	Matches(set Set) bool

	// String 返回表达式的文本形式（可被 Parse 重新解析）
	String() string
}

// Composite 组合表达式节点
//
// 除原子外的所有节点实现此接口，暴露结构化子表达式供遍历。
type Composite interface {
	Expression

	// Children 返回直接子表达式（声明顺序）
	Children() []Expression
}

// And 逻辑与
type And struct {
	LHS Expression
	RHS Expression
}

func (e And) Matches(set Set) bool   { return e.LHS.Matches(set) && e.RHS.Matches(set) }
func (e And) Children() []Expression { return []Expression{e.LHS, e.RHS} }
func (e And) String() string         { return e.LHS.String() + " && " + e.RHS.String() }

// Or 逻辑或
type Or struct {
	LHS Expression
	RHS Expression
}

func (e Or) Matches(set Set) bool   { return e.LHS.Matches(set) || e.RHS.Matches(set) }
func (e Or) Children() []Expression { return []Expression{e.LHS, e.RHS} }
func (e Or) String() string         { return e.LHS.String() + " || " + e.RHS.String() }

// Not 逻辑非
type Not struct {
	Expr Expression
}

func (e Not) Matches(set Set) bool   { return !e.Expr.Matches(set) }
func (e Not) Children() []Expression { return []Expression{e.Expr} }
func (e Not) String() string         { return "!" + e.Expr.String() }

// Implies 蕴含（l -> r 等价于 !l || r）
type Implies struct {
	LHS Expression
	RHS Expression
}

func (e Implies) Matches(set Set) bool   { return !e.LHS.Matches(set) || e.RHS.Matches(set) }
func (e Implies) Children() []Expression { return []Expression{e.LHS, e.RHS} }
func (e Implies) String() string         { return e.LHS.String() + " -> " + e.RHS.String() }

// Iff 双向蕴含（l <-> r 等价于两边同真同假）
type Iff struct {
	LHS Expression
	RHS Expression
}

func (e Iff) Matches(set Set) bool   { return e.LHS.Matches(set) == e.RHS.Matches(set) }
func (e Iff) Children() []Expression { return []Expression{e.LHS, e.RHS} }
func (e Iff) String() string         { return e.LHS.String() + " <-> " + e.RHS.String() }

// Paren 括号分组（保留文本形式，匹配语义透传）
type Paren struct {
	Expr Expression
}

func (e Paren) Matches(set Set) bool   { return e.Expr.Matches(set) }
func (e Paren) Children() []Expression { return []Expression{e.Expr} }
func (e Paren) String() string         { return "(" + e.Expr.String() + ")" }

// Set 原子标签集合
type Set map[Atom]struct{}

// NewSet 由原子列表创建集合
func NewSet(atoms ...Atom) Set {
	s := make(Set, len(atoms))
	for _, a := range atoms {
		s[a] = struct{}{}
	}
	return s
}

// Add 向集合添加原子
func (s Set) Add(a Atom) {
	s[a] = struct{}{}
}

// Contains 判断原子是否在集合中
func (s Set) Contains(a Atom) bool {
	_, ok := s[a]
	return ok
}

// Union 返回包含两个集合全部原子的新集合
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for a := range s {
		out[a] = struct{}{}
	}
	for a := range other {
		out[a] = struct{}{}
	}
	return out
}

// Atoms 返回排序后的原子列表（输出稳定，便于日志和测试）
func (s Set) Atoms() []Atom {
	out := make([]Atom, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) String() string {
	atoms := s.Atoms()
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = string(a)
	}
	return strings.Join(parts, " ")
}

// ParseAtoms 解析空白分隔的原子标签串（如池的容量标签配置）
func ParseAtoms(s string) Set {
	set := make(Set)
	for _, f := range strings.Fields(s) {
		set.Add(Atom(f))
	}
	return set
}
