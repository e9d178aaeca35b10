package command

import "strings"

// helpText returns the fixed enumeration of supported verbs
func helpText() string {
	lines := []string{
		"Available commands:",
		"  SET/S ^global=value                    - Set global value",
		"  SET/S ^global(subscript)=value         - Set subscript value",
		"  SET/S variable=value                   - Set local variable",
		"  GET/G ^global                          - Get global value",
		"  GET/G ^global(subscript)               - Get subscript value",
		"  KILL/K ^global                         - Delete global",
		"  KILL/K ^global(subscript)              - Delete subtree",
		"  QUERY ^global DEPTH n                  - Query with depth",
		"  WRITE/W expression                     - Write data to output",
		"  WRITE/W \"text\",^global,var             - Combine text, globals and variables",
		"  ZW/ZWRITE [pattern|^global]            - List globals or dump a global's nodes",
		"  FSEARCH/FS value                       - Fast search by value using indexes",
		"  EXACTSEARCH text [IN ^global]          - Exact text search",
		"  SIMSEARCH text [IN ^global] [TOP n]    - Semantic similarity search",
		"  TSTART/BEGIN TRANSACTION               - Start transaction",
		"  TCOMMIT/COMMIT                         - Commit transaction",
		"  TROLLBACK/ROLLBACK                     - Rollback transaction",
		"  STATS/$S                               - Show statistics",
		"  HELP                                   - Show this help message",
		"  EXIT                                   - Close the session",
	}
	return strings.Join(lines, "\n")
}

// HelpText exposes the help listing for the session banner
func HelpText() string {
	return helpText()
}
