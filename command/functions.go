package command

import (
	"regexp"
	"sort"
	"strings"

	"mumpsdb/core"
)

// orderPattern matches $ORDER(^G[,subscripts][,direction]) inside a value
// expression. The direction operand is +1 (default) or -1.
var orderPattern = regexp.MustCompile(
	`(?i)\$ORDER\s*\(\s*([^,()\s]+)\s*(?:,\s*([^()]*?)\s*)?(?:,\s*([+-]?1)\s*)?\)`)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// functionHandler evaluates MUMPS intrinsic functions embedded in value
// expressions before they are written or printed.
type functionHandler struct {
	store *core.Store
}

// process substitutes every $ORDER occurrence in the expression with its
// result text.
func (h *functionHandler) process(sess *Session, expression string) string {
	result := expression
	for {
		m := orderPattern.FindStringSubmatchIndex(result)
		if m == nil {
			return result
		}
		groups := orderPattern.FindStringSubmatch(result[m[0]:m[1]])
		replacement := h.evalOrder(sess, groups[1], groups[2], groups[3])
		result = result[:m[0]] + replacement + result[m[1]:]
	}
}

// evalOrder returns the subscript immediately following (direction +1) or
// preceding (-1) the given one at the addressed tree level, or the empty
// string off either end.
func (h *functionHandler) evalOrder(sess *Session, global, subscriptText, directionText string) string {
	direction := 1
	if directionText == "-1" {
		direction = -1
	}

	subscriptText = strings.TrimSpace(subscriptText)
	if subscriptText == "" {
		return h.nextGlobal(global, direction)
	}

	path := ParsePath(subscriptText)
	resolved := h.resolveVariables(sess, path)

	prefix := resolved[:len(resolved)-1]
	current := resolved[len(resolved)-1].Text()

	children := h.store.ChildSubscripts(global, prefix)
	if len(children) == 0 {
		return ""
	}

	if current == "" {
		if direction == 1 {
			return children[0].Text()
		}
		return children[len(children)-1].Text()
	}

	index := -1
	for i, s := range children {
		if s.Text() == current {
			index = i
			break
		}
	}
	if index == -1 {
		if direction == 1 {
			return children[0].Text()
		}
		return children[len(children)-1].Text()
	}

	next := index + direction
	if next < 0 || next >= len(children) {
		return ""
	}
	return children[next].Text()
}

// nextGlobal walks the sorted list of global names and returns the
// neighbor of the given one, without the leading caret.
func (h *functionHandler) nextGlobal(global string, direction int) string {
	names := h.store.GlobalNames()
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)

	current := core.NormalizeGlobalName(global)
	index := -1
	for i, name := range names {
		if name == current {
			index = i
			break
		}
	}
	if index == -1 {
		return strings.TrimPrefix(names[0], "^")
	}

	next := index + direction
	if next < 0 || next >= len(names) {
		return ""
	}
	return strings.TrimPrefix(names[next], "^")
}

// resolveVariables substitutes path elements that name a live local
// variable with the variable's current textual value. Other elements pass
// through literally.
func (h *functionHandler) resolveVariables(sess *Session, path core.Path) core.Path {
	resolved := make(core.Path, len(path))
	for i, s := range path {
		if s.Kind() == core.KindString && identifierPattern.MatchString(s.Str()) {
			if v, ok := sess.Local(s.Str()); ok {
				resolved[i] = core.ParseSubscript(v.Text())
				continue
			}
		}
		resolved[i] = s
	}
	return resolved
}
