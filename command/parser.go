package command

import (
	"regexp"
	"strconv"
	"strings"

	"mumpsdb/core"
)

// Patterns for the verb forms. The verb is case-insensitive; payloads are
// preserved literally.
var (
	setPattern         = regexp.MustCompile(`(?i)^S(?:ET)?\s+([A-Za-z_^][^\s(=]*)(?:\(([^)]*)\))?\s*=\s*(.+)$`)
	getPattern         = regexp.MustCompile(`(?i)^G(?:ET)?\s+(\^?[^\s(]+)(?:\(([^)]*)\))?\s*$`)
	killPattern        = regexp.MustCompile(`(?i)^K(?:ILL)?\s+(\^?[^\s(]+)(?:\(([^)]*)\))?\s*$`)
	queryPattern       = regexp.MustCompile(`(?i)^Q(?:UERY)?\s+([^\s(]+)(?:\(([^)]*)\))?(?:\s+DEPTH\s+(-?\d+))?\s*$`)
	writePattern       = regexp.MustCompile(`(?i)^W(?:RITE)?\s+(.+)$`)
	zwritePattern      = regexp.MustCompile(`(?i)^ZW(?:RITE)?(?:\s+(.+))?$`)
	fastSearchPattern  = regexp.MustCompile(`(?i)^F(?:S|SEARCH)?\s+(.+)$`)
	exactSearchPattern = regexp.MustCompile(`(?i)^EXACTSEARCH\s+(.+?)(?:\s+IN\s+(\^?\S+))?\s*$`)
	simSearchPattern   = regexp.MustCompile(`(?i)^SIMSEARCH\s+(.+?)(?:\s+IN\s+(\^?\S+))?(?:\s+TOP\s+(\d+))?\s*$`)
)

// keyword commands that take no payload, mapped to their type
var keywordCommands = map[string]Type{
	"TSTART":            TypeBeginTransaction,
	"BEGIN TRANSACTION": TypeBeginTransaction,
	"TCOMMIT":           TypeCommit,
	"COMMIT":            TypeCommit,
	"TROLLBACK":         TypeRollback,
	"ROLLBACK":          TypeRollback,
	"STATS":             TypeStats,
	"$S":                TypeStats,
	"HELP":              TypeHelp,
	"EXIT":              TypeExit,
	"QUIT":              TypeExit,
}

// Parse turns one logical line into a typed command. Malformed input
// yields the error carrier, never a panic.
func Parse(input string) Command {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return errorCommand("Empty command")
	}

	if t, ok := keywordCommands[strings.ToUpper(trimmed)]; ok {
		return Command{Type: t}
	}

	if m := zwritePattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Type: TypeZWrite, Filter: strings.TrimSpace(m[1])}
	}
	if m := writePattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Type: TypeWrite, ValueText: strings.TrimSpace(m[1])}
	}
	if m := setPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{
			Type:      TypeSet,
			Name:      m[1],
			Path:      ParsePath(m[2]),
			ValueText: strings.TrimSpace(m[3]),
		}
	}
	if m := getPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Type: TypeGet, Name: m[1], Path: ParsePath(m[2])}
	}
	if m := killPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Type: TypeKill, Name: m[1], Path: ParsePath(m[2])}
	}
	if m := queryPattern.FindStringSubmatch(trimmed); m != nil {
		depth := 0
		if m[3] != "" {
			d, err := strconv.Atoi(m[3])
			if err != nil {
				return errorCommand("Invalid QUERY depth: " + m[3])
			}
			depth = d
		}
		return Command{Type: TypeQuery, Name: m[1], Path: ParsePath(m[2]), Depth: depth}
	}
	if m := simSearchPattern.FindStringSubmatch(trimmed); m != nil {
		topK := 0
		if m[3] != "" {
			k, err := strconv.Atoi(m[3])
			if err != nil {
				return errorCommand("Invalid SIMSEARCH topK: " + m[3])
			}
			topK = k
		}
		return Command{
			Type:      TypeSimilaritySearch,
			ValueText: strings.TrimSpace(m[1]),
			Name:      m[2],
			TopK:      topK,
		}
	}
	if m := exactSearchPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Type: TypeExactSearch, ValueText: strings.TrimSpace(m[1]), Name: m[2]}
	}
	if m := fastSearchPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Type: TypeFastSearch, ValueText: strings.TrimSpace(m[1])}
	}

	return errorCommand("Unknown command: " + trimmed)
}

func errorCommand(message string) Command {
	return Command{Type: TypeError, Err: message}
}

// ParsePath splits subscript text on commas outside of matching single or
// double quotes and canonicalizes each element after stripping its quotes:
// numeric text becomes an integer or float subscript, anything else a
// string. Quoted numeric text is canonicalized the same way, so "10"
// becomes the integer subscript 10.
func ParsePath(pathText string) core.Path {
	parts := splitQuoted(pathText)
	if len(parts) == 0 {
		return nil
	}
	path := make(core.Path, 0, len(parts))
	for _, part := range parts {
		path = append(path, core.ParseSubscript(unquote(part)))
	}
	return path
}

// splitQuoted splits on commas that are outside single or double quotes.
// A doubled quote inside a quoted run is the escaped quote character.
func splitQuoted(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	var quoteChar byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case (c == '"' || c == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = c
			current.WriteByte(c)
		case inQuotes && c == quoteChar:
			if i+1 < len(text) && text[i+1] == quoteChar {
				current.WriteByte(c)
				current.WriteByte(c)
				i++
				continue
			}
			inQuotes = false
			current.WriteByte(c)
		case c == ',' && !inQuotes:
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// unquote strips one level of surrounding quotes and folds doubled quotes
func unquote(text string) string {
	if len(text) >= 2 {
		if (text[0] == '"' && text[len(text)-1] == '"') ||
			(text[0] == '\'' && text[len(text)-1] == '\'') {
			inner := text[1 : len(text)-1]
			if text[0] == '"' {
				inner = strings.ReplaceAll(inner, `""`, `"`)
			}
			return inner
		}
	}
	return text
}

// isQuoted reports whether the text is a quoted literal
func isQuoted(text string) bool {
	return len(text) >= 2 &&
		((text[0] == '"' && text[len(text)-1] == '"') ||
			(text[0] == '\'' && text[len(text)-1] == '\''))
}

// parseValueExpression canonicalizes a SET value: quoted text stays a
// string, numeric text becomes a number, anything else is a bare string.
func parseValueExpression(text string) core.Value {
	if isQuoted(text) {
		return core.StringValue(unquote(text))
	}
	return core.ParseValue(text)
}
