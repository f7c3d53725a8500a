package parser

import (
	"fmt"
	"strconv"
	"strings"

	lex "minidb/query_parser/lexer"
	"minidb/types"
)

/*
Recursive-descent parser for the statement set the executor consumes.
One Parser parses one statement; the shell and EXEC construct a fresh
lexer+parser pair per statement. Every failure wraps types.ErrParse so the
dispatcher can surface parse errors verbatim.
*/

type Parser struct {
	l         *lex.Lexer
	curToken  lex.Token
	peekToken lex.Token
}

func New(l *lex.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrParse, fmt.Sprintf(format, args...))
}

// expect consumes the current token if it has the wanted kind.
func (p *Parser) expect(kind lex.TokenKind) error {
	if p.curToken.Kind != kind {
		return p.errorf("expected %s, got %s (%q)", kind, p.curToken.Kind, p.curToken.Value)
	}
	p.nextToken()
	return nil
}

// ident consumes an identifier and returns its spelling.
func (p *Parser) ident(what string) (string, error) {
	if p.curToken.Kind != lex.IDENT {
		return "", p.errorf("expected %s, got %s (%q)", what, p.curToken.Kind, p.curToken.Value)
	}
	name := p.curToken.Value
	p.nextToken()
	return name, nil
}

// ParseStatement is the entry point.
func (p *Parser) ParseStatement() (types.Statement, error) {
	switch p.curToken.Kind {
	case lex.CREATE:
		return p.parseCreate()
	case lex.DROP:
		return p.parseDrop()
	case lex.USE:
		return p.parseUse()
	case lex.INSERT:
		return p.parseInsert()
	case lex.SELECT:
		return p.parseSelect()
	case lex.DELETE:
		return p.parseDelete()
	case lex.UPDATE:
		return p.parseUpdate()
	case lex.EXEC:
		return p.parseExec()
	case lex.QUIT:
		p.nextToken()
		return types.SQLQuit{}, p.finish()
	}
	return nil, p.errorf("unexpected token %s (%q)", p.curToken.Kind, p.curToken.Value)
}

// finish accepts the optional terminating semicolon and requires the end of
// input after it.
func (p *Parser) finish() error {
	if p.curToken.Kind == lex.SEMICOLON {
		p.nextToken()
	}
	if p.curToken.Kind != lex.END {
		return p.errorf("trailing input after statement: %q", p.curToken.Value)
	}
	return nil
}

// ── CREATE ────────────────────────────────────────────────────────────────

func (p *Parser) parseCreate() (types.Statement, error) {
	p.nextToken() // consume CREATE
	switch p.curToken.Kind {
	case lex.DATABASE:
		p.nextToken()
		name, err := p.ident("database name")
		if err != nil {
			return nil, err
		}
		return types.SQLCreateDatabase{DBName: name}, p.finish()
	case lex.TABLE:
		return p.parseCreateTable()
	case lex.INDEX:
		return p.parseCreateIndex()
	}
	return nil, p.errorf("expected DATABASE, TABLE or INDEX after CREATE, got %q", p.curToken.Value)
}

func (p *Parser) parseCreateTable() (types.Statement, error) {
	p.nextToken() // consume TABLE
	name, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}

	st := types.SQLCreateTable{TBName: name}
	for {
		// Trailing constraint form: primary key ( col )
		if p.curToken.Kind == lex.PRIMARY {
			col, err := p.parsePrimaryKeyClause()
			if err != nil {
				return nil, err
			}
			if err := markPrimary(&st, col); err != nil {
				return nil, err
			}
		} else {
			def, err := p.parseAttrDef()
			if err != nil {
				return nil, err
			}
			st.Attrs = append(st.Attrs, def)
		}

		if p.curToken.Kind == lex.COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	if len(st.Attrs) == 0 {
		return nil, p.errorf("table %s has no attributes", name)
	}
	return st, p.finish()
}

// parseAttrDef parses: name type [primary key]
// where type is int, float or char(N).
func (p *Parser) parseAttrDef() (types.AttrDef, error) {
	var def types.AttrDef

	name, err := p.ident("attribute name")
	if err != nil {
		return def, err
	}
	def.Name = name

	typeName, err := p.ident("attribute type")
	if err != nil {
		return def, err
	}
	switch strings.ToLower(typeName) {
	case "int":
		def.Type = types.TypeInt
		def.Length = 4
	case "float":
		def.Type = types.TypeFloat
		def.Length = 4
	case "char":
		def.Type = types.TypeChar
		if err := p.expect(lex.LPAREN); err != nil {
			return def, err
		}
		if p.curToken.Kind != lex.INT {
			return def, p.errorf("expected char length, got %q", p.curToken.Value)
		}
		length, err := strconv.Atoi(p.curToken.Value)
		if err != nil || length <= 0 {
			return def, p.errorf("invalid char length %q", p.curToken.Value)
		}
		def.Length = length
		p.nextToken()
		if err := p.expect(lex.RPAREN); err != nil {
			return def, err
		}
	default:
		return def, p.errorf("unknown type %q for attribute %s", typeName, name)
	}

	if p.curToken.Kind == lex.PRIMARY {
		p.nextToken()
		if err := p.expect(lex.KEY); err != nil {
			return def, err
		}
		def.PrimaryKey = true
	}
	return def, nil
}

// parsePrimaryKeyClause parses: primary key ( col )
func (p *Parser) parsePrimaryKeyClause() (string, error) {
	p.nextToken() // consume PRIMARY
	if err := p.expect(lex.KEY); err != nil {
		return "", err
	}
	if err := p.expect(lex.LPAREN); err != nil {
		return "", err
	}
	col, err := p.ident("primary key column")
	if err != nil {
		return "", err
	}
	if err := p.expect(lex.RPAREN); err != nil {
		return "", err
	}
	return col, nil
}

func markPrimary(st *types.SQLCreateTable, col string) error {
	for i := range st.Attrs {
		if st.Attrs[i].Name == col {
			st.Attrs[i].PrimaryKey = true
			return nil
		}
	}
	return fmt.Errorf("%w: primary key column %q is not declared", types.ErrParse, col)
}

func (p *Parser) parseCreateIndex() (types.Statement, error) {
	p.nextToken() // consume INDEX
	name, err := p.ident("index name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lex.ON); err != nil {
		return nil, err
	}
	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}
	col, err := p.ident("column name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	return types.SQLCreateIndex{IndexName: name, TBName: table, ColName: col}, p.finish()
}

// ── DROP ──────────────────────────────────────────────────────────────────

func (p *Parser) parseDrop() (types.Statement, error) {
	p.nextToken() // consume DROP
	switch p.curToken.Kind {
	case lex.DATABASE:
		p.nextToken()
		name, err := p.ident("database name")
		if err != nil {
			return nil, err
		}
		return types.SQLDropDatabase{DBName: name}, p.finish()
	case lex.TABLE:
		p.nextToken()
		name, err := p.ident("table name")
		if err != nil {
			return nil, err
		}
		return types.SQLDropTable{TBName: name}, p.finish()
	case lex.INDEX:
		p.nextToken()
		name, err := p.ident("index name")
		if err != nil {
			return nil, err
		}
		return types.SQLDropIndex{IndexName: name}, p.finish()
	}
	return nil, p.errorf("expected DATABASE, TABLE or INDEX after DROP, got %q", p.curToken.Value)
}

// ── USE ───────────────────────────────────────────────────────────────────

func (p *Parser) parseUse() (types.Statement, error) {
	p.nextToken()
	name, err := p.ident("database name")
	if err != nil {
		return nil, err
	}
	return types.SQLUse{DBName: name}, p.finish()
}
