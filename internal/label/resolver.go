// Package label 镜像候选发现
//
// 任务可以通过 docker/<image> 形式的原子标签直接指定容器镜像，
// 本文件负责从任意表达式树中枚举这类原子。
package label

import (
	"log"
	"strings"
)

// ImagePrefix 镜像命名空间前缀
//
// 以该前缀开头的原子标签被视为容器镜像引用，如 docker/ubuntu。
const ImagePrefix = "docker/"

// IsImageAtom 判断原子是否为合法的镜像引用
//
// 前缀之后必须有非空的镜像名。
func IsImageAtom(a Atom) bool {
	s := string(a)
	return strings.HasPrefix(s, ImagePrefix) && len(s) > len(ImagePrefix)
}

// ImageName 提取镜像引用原子中的镜像名（去掉前缀）
func ImageName(a Atom) string {
	return strings.TrimPrefix(string(a), ImagePrefix)
}

// ImageAtom 由镜像名构造镜像引用原子
func ImageAtom(imageName string) Atom {
	return Atom(ImagePrefix + imageName)
}

// ImageCandidates 枚举表达式中出现的全部镜像引用原子
//
// 发现是结构性的：只遍历节点，不解释 And/Or/Not 的语义。
// 根节点本身是合格原子时即为唯一结果（原子没有子节点）；
// 组合节点按 Children() 的顺序递归。结果顺序即树遍历顺序，可能为空。
func ImageCandidates(expr Expression) []Atom {
	return discoverImageAtoms(expr, nil)
}

func discoverImageAtoms(expr Expression, results []Atom) []Atom {
	if expr == nil {
		return results
	}

	if atom, ok := expr.(Atom); ok {
		if IsImageAtom(atom) {
			results = append(results, atom)
		}
		return results
	}

	composite, ok := expr.(Composite)
	if !ok {
		// 未知的表达式形态：跳过该分支，继续其余遍历
		log.Printf("[label.resolver] skipping unknown expression node type=%T", expr)
		return results
	}

	for _, child := range composite.Children() {
		results = discoverImageAtoms(child, results)
	}
	return results
}
