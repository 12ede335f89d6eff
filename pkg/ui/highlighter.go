package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	keywords = []string{
		"SELECT", "FROM", "WHERE", "INSERT", "INTO", "VALUES", "UPDATE", "SET",
		"DELETE", "CREATE", "TABLE", "VIEW", "TRIGGER", "DROP", "ALTER", "ADD",
		"COLUMN", "CONSTRAINT", "PRIMARY", "FOREIGN", "KEY", "REFERENCES",
		"UNIQUE", "CHECK", "INDEX", "NOT", "NULL", "DEFAULT", "AFTER", "OF",
		"ON", "FOR", "EACH", "ROW", "AS", "RESTRICT", "CASCADE", "RENAME", "TO",
		"COMMIT", "ROLLBACK", "SAVEPOINT", "NEW", "OLD",
	}

	operators = []string{
		"==", "!=", "<", ">", "<=", ">=", "+", "-", "*", "/", "%", "&&", "||",
	}
)

// SQLHighlighter colors statement text for terminal output.
type SQLHighlighter struct {
	keywords      map[string]bool
	operators     map[string]bool
	keywordStyle  lipgloss.Style
	stringStyle   lipgloss.Style
	numberStyle   lipgloss.Style
	operatorStyle lipgloss.Style
}

func NewSQLHighlighter() *SQLHighlighter {
	h := &SQLHighlighter{
		keywords:  make(map[string]bool),
		operators: make(map[string]bool),
	}

	for _, kw := range keywords {
		h.keywords[kw] = true
		h.keywords[strings.ToLower(kw)] = true
	}
	for _, op := range operators {
		h.operators[op] = true
	}

	h.keywordStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF79C6")).
		Bold(true)

	h.stringStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F1FA8C"))

	h.numberStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#BD93F9"))

	h.operatorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFB86C"))

	return h
}

// Highlight styles each whitespace-separated word of sql. Qualified names
// such as NEW.B are styled by their qualifier.
func (h *SQLHighlighter) Highlight(sql string) string {
	words := strings.Fields(sql)
	highlighted := make([]string, 0, len(words))

	for _, word := range words {
		clean := strings.Trim(word, ",;()")
		if qualifier, _, ok := strings.Cut(clean, "."); ok {
			clean = qualifier
		}

		switch {
		case h.keywords[clean]:
			highlighted = append(highlighted, h.keywordStyle.Render(word))
		case strings.HasPrefix(clean, "'") || strings.HasPrefix(clean, `"`):
			highlighted = append(highlighted, h.stringStyle.Render(word))
		case isNumeric(clean):
			highlighted = append(highlighted, h.numberStyle.Render(word))
		case h.operators[word]:
			highlighted = append(highlighted, h.operatorStyle.Render(word))
		default:
			highlighted = append(highlighted, word)
		}
	}

	return strings.Join(highlighted, " ")
}

// isNumeric checks if a string represents a number
func isNumeric(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789.-", c) {
			return false
		}
	}
	return s != "" && s != "-" && s != "."
}
