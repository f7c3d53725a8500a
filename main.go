package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"

	lex "minidb/query_parser/lexer"
	"minidb/query_parser/parser"
	storageengine "minidb/storage_engine"
)

/*
The interactive shell. One statement at a time: lines accumulate until a
semicolon, the statement goes through the lexer, the parser and the engine,
and the result renders. Errors print and the prompt returns — the session
survives everything except QUIT and EOF.
*/

var cli struct {
	DataDir string `short:"d" default:"minidb_data" help:"Directory the databases live in."`
	Frames  int    `default:"300" help:"Buffer pool capacity in frames."`
	Exec    string `optional:"" help:"Script to execute before the prompt."`
	Batch   bool   `help:"Exit after --exec instead of starting the prompt."`
	Trace   bool   `help:"Print buffer pool events."`
}

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

func main() {
	kong.Parse(&cli,
		kong.Name("minidb"),
		kong.Description("An embedded relational database engine."),
	)

	engine, err := storageengine.NewStorageEngine(cli.DataDir, cli.Frames)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
	engine.SetTrace(cli.Trace)

	if cli.Exec != "" {
		if !runStatement(engine, fmt.Sprintf("exec %q", cli.Exec)) {
			return
		}
		if cli.Batch {
			_ = engine.Close()
			return
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			fmt.Print(promptStyle.Render("MiniDB> "))
		} else {
			fmt.Print(promptStyle.Render("     -> "))
		}

		if !scanner.Scan() {
			_ = engine.Close()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Bare exit/quit works without the semicolon, like the original
		// prompt.
		if buf.Len() == 0 && (strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit")) {
			line = "quit;"
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.Contains(line, ";") {
			continue
		}

		text := buf.String()
		lastSemi := strings.LastIndex(text, ";")
		alive := true
		for _, sql := range splitStatements(text[:lastSemi]) {
			if alive = runStatement(engine, sql); !alive {
				break
			}
		}
		if !alive {
			return
		}
		buf.Reset()
		buf.WriteString(strings.TrimSpace(text[lastSemi+1:]))
	}
}

// runStatement parses and executes one statement, rendering whatever comes
// back. Returns false when the session should end.
func runStatement(engine *storageengine.StorageEngine, sql string) bool {
	stmt, err := parser.New(lex.New(sql)).ParseStatement()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return true
	}

	result, err := engine.Execute(stmt)
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return true
	}

	if result.Select != nil {
		fmt.Print(renderSelect(result.Select))
	}
	if result.Message != "" {
		fmt.Println(messageStyle.Render(result.Message))
	}
	return !result.Quit
}

func splitStatements(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// renderSelect lays the result set out as a padded table with a styled
// header row.
func renderSelect(res *storageengine.SelectResult) string {
	const minWidth = 9

	widths := make([]int, len(res.Columns))
	for i, col := range res.Columns {
		widths[i] = max(len(col), minWidth)
	}
	for _, row := range res.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var sb strings.Builder
	for i, col := range res.Columns {
		sb.WriteString(headerStyle.Render(pad(col, widths[i])))
		if i < len(res.Columns)-1 {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("\n")
	for _, row := range res.Rows {
		for i, cell := range row {
			sb.WriteString(pad(cell, widths[i]))
			if i < len(row)-1 {
				sb.WriteString("  ")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
