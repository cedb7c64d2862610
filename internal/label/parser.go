// Package label 标签表达式解析器
//
// 语法（优先级从低到高）：
//
//	expr  := iff
//	iff   := imply ("<->" imply)*
//	imply := or ("->" or)*
//	or    := and ("||" and)*
//	and   := unary ("&&" unary)*
//	unary := "!" unary | "(" expr ")" | atom
//
// 原子标签是连续的非空白字符序列，不含 ( ) ! & | 和运算符序列，
// 因此 docker/ubuntu:24.04 这类镜像引用是单个原子。
package label

import (
	"fmt"
	"strings"
)

// Parse 解析标签表达式文本
//
// 空串或纯空白返回 (nil, nil)，表示无标签限制。
func Parse(s string) (Expression, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	p := &parser{input: s}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected input at offset %d: %q", p.pos, p.input[p.pos:])
	}
	return expr, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

// peekOp 判断当前位置是否为指定运算符
func (p *parser) peekOp(op string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.input[p.pos:], op)
}

func (p *parser) consumeOp(op string) bool {
	if p.peekOp(op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *parser) parseExpr() (Expression, error) {
	return p.parseIff()
}

func (p *parser) parseIff() (Expression, error) {
	lhs, err := p.parseImply()
	if err != nil {
		return nil, err
	}
	for p.consumeOp("<->") {
		rhs, err := p.parseImply()
		if err != nil {
			return nil, err
		}
		lhs = Iff{LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *parser) parseImply() (Expression, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.consumeOp("->") {
		rhs, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		lhs = Implies{LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *parser) parseOr() (Expression, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.consumeOp("||") {
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = Or{LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (Expression, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.consumeOp("&&") {
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = And{LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (Expression, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	switch p.input[p.pos] {
	case '!':
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	case '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, fmt.Errorf("missing closing parenthesis at offset %d", p.pos)
		}
		p.pos++
		return Paren{Expr: inner}, nil
	}

	return p.parseAtom()
}

func (p *parser) parseAtom() (Expression, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ' ' || c == '\t' || c == '(' || c == ')' || c == '!' || c == '&' || c == '|' {
			break
		}
		// 原子中不吞掉 -> 和 <-> 运算符
		if c == '-' && strings.HasPrefix(p.input[p.pos:], "->") {
			break
		}
		if c == '<' && strings.HasPrefix(p.input[p.pos:], "<->") {
			break
		}
		p.pos++
	}

	if p.pos == start {
		return nil, fmt.Errorf("expected label atom at offset %d: %q", start, p.input[start:])
	}
	return Atom(p.input[start:p.pos]), nil
}
