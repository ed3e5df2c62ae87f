// ABOUTME: Bootstrap scripts executed against newly provisioned tenants
// ABOUTME: Splits SQL text into statements and classifies benign failures

package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Script is a named, ordered list of SQL statements.
type Script struct {
	Name       string
	Statements []string
}

// ParseScript splits body into statements on semicolons that are outside
// quotes, comments and trigger bodies. Comments are dropped. Inside a
// CREATE TRIGGER statement, semicolons between BEGIN and the matching END
// belong to the statement; CASE ... END pairs are counted so they do not
// close the body early.
func ParseScript(name, body string) Script {
	var (
		stmts []string
		cur   strings.Builder
		word  strings.Builder
		lead  []string // first words of the current statement, upper-cased
		quote rune
		depth int // open BEGIN and CASE blocks of a trigger body
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
		lead = lead[:0]
		depth = 0
	}
	endWord := func() {
		if word.Len() == 0 {
			return
		}
		w := strings.ToUpper(word.String())
		word.Reset()
		if len(lead) < 3 {
			lead = append(lead, w)
		}
		if !isTriggerLead(lead) {
			return
		}
		switch w {
		case "BEGIN", "CASE":
			depth++
		case "END":
			if depth > 0 {
				depth--
			}
		}
	}

	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote == 0 && isWordRune(r) {
			word.WriteRune(r)
			cur.WriteRune(r)
			continue
		}
		if quote == 0 {
			endWord()
		}

		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
			cur.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i < len(runes) && (runes[i] != '*' || i+1 >= len(runes) || runes[i+1] != '/') {
				i++
			}
			i++ // onto the closing slash
			cur.WriteRune(' ')
		case r == ';' && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	endWord()
	flush()

	return Script{Name: name, Statements: stmts}
}

// isTriggerLead reports whether the leading words open a CREATE TRIGGER
// statement, with or without TEMP.
func isTriggerLead(lead []string) bool {
	if len(lead) < 2 || lead[0] != "CREATE" {
		return false
	}
	return lead[1] == "TRIGGER" || (len(lead) == 3 && lead[2] == "TRIGGER")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// LoadScripts reads and parses the script files at paths, in order.
func LoadScripts(paths []string) ([]Script, error) {
	scripts := make([]Script, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", p, err)
		}
		scripts = append(scripts, ParseScript(filepath.Base(p), string(data)))
	}
	return scripts, nil
}

// isAlreadyApplied reports whether err means the statement's effect is
// already present in the database.
func isAlreadyApplied(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate column name")
}
