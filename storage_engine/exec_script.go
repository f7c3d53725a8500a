package storageengine

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	lex "minidb/query_parser/lexer"
	"minidb/query_parser/parser"
	"minidb/types"
)

/*
EXEC and QUIT. EXEC feeds a script file through the same parse/dispatch path
as the prompt: statements accumulate until a terminating semicolon and run
in order. The first failing statement stops the script but not the session.
*/

func (se *StorageEngine) execScript(st types.SQLExec) (*ExecResult, error) {
	file, err := os.Open(st.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open script %s: %v", types.ErrIO, st.Path, err)
	}
	defer file.Close()

	executed := 0
	var buf strings.Builder
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.Contains(line, ";") {
			continue
		}

		// Only text up to the last semicolon is complete; anything after it
		// is the start of the next statement.
		text := buf.String()
		lastSemi := strings.LastIndex(text, ";")
		for _, sql := range splitStatements(text[:lastSemi]) {
			stmt, err := parser.New(lex.New(sql)).ParseStatement()
			if err != nil {
				return nil, fmt.Errorf("script %s: %w", st.Path, err)
			}
			if _, err := se.Execute(stmt); err != nil {
				return nil, fmt.Errorf("script %s: %w", st.Path, err)
			}
			executed++
		}
		buf.Reset()
		buf.WriteString(text[lastSemi+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read script %s: %v", types.ErrIO, st.Path, err)
	}

	if tail := strings.TrimSpace(buf.String()); tail != "" {
		return nil, fmt.Errorf("%w: script %s ends mid-statement: %q", types.ErrParse, st.Path, tail)
	}

	return &ExecResult{Message: fmt.Sprintf("%d statement(s) executed from %s", executed, st.Path)}, nil
}

// splitStatements cuts a buffer on semicolons and drops blanks.
func splitStatements(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (se *StorageEngine) execQuit() (*ExecResult, error) {
	if err := se.Close(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: "bye", Quit: true}, nil
}
