package parser

import (
	lex "minidb/query_parser/lexer"
	"minidb/types"
)

/*
DML statements: INSERT, SELECT, DELETE, UPDATE, plus the WHERE conjunction
they share, and the session statements EXEC and QUIT.
*/

func (p *Parser) parseInsert() (types.Statement, error) {
	p.nextToken() // consume INSERT
	if err := p.expect(lex.INTO); err != nil {
		return nil, err
	}
	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lex.VALUES); err != nil {
		return nil, err
	}
	if err := p.expect(lex.LPAREN); err != nil {
		return nil, err
	}

	st := types.SQLInsert{TBName: table}
	for {
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		st.Values = append(st.Values, val)
		if p.curToken.Kind == lex.COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(lex.RPAREN); err != nil {
		return nil, err
	}
	return st, p.finish()
}

// parseLiteral consumes one typed literal.
func (p *Parser) parseLiteral() (types.SQLValue, error) {
	var val types.SQLValue
	switch p.curToken.Kind {
	case lex.INT:
		val = types.SQLValue{Type: types.TypeInt, Text: p.curToken.Value}
	case lex.FLOAT:
		val = types.SQLValue{Type: types.TypeFloat, Text: p.curToken.Value}
	case lex.STRING:
		val = types.SQLValue{Type: types.TypeChar, Text: p.curToken.Value}
	default:
		return val, p.errorf("expected a literal, got %s (%q)", p.curToken.Kind, p.curToken.Value)
	}
	p.nextToken()
	return val, nil
}

func (p *Parser) parseSelect() (types.Statement, error) {
	p.nextToken() // consume SELECT
	if err := p.expect(lex.ASTERISK); err != nil {
		return nil, err
	}
	if err := p.expect(lex.FROM); err != nil {
		return nil, err
	}
	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}

	wheres, err := p.parseWheres()
	if err != nil {
		return nil, err
	}
	return types.SQLSelect{TBName: table, Wheres: wheres}, p.finish()
}

func (p *Parser) parseDelete() (types.Statement, error) {
	p.nextToken() // consume DELETE
	if err := p.expect(lex.FROM); err != nil {
		return nil, err
	}
	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	wheres, err := p.parseWheres()
	if err != nil {
		return nil, err
	}
	return types.SQLDelete{TBName: table, Wheres: wheres}, p.finish()
}

func (p *Parser) parseUpdate() (types.Statement, error) {
	p.nextToken() // consume UPDATE
	table, err := p.ident("table name")
	if err != nil {
		return nil, err
	}
	if err := p.expect(lex.SET); err != nil {
		return nil, err
	}

	st := types.SQLUpdate{TBName: table}
	for {
		col, err := p.ident("column name")
		if err != nil {
			return nil, err
		}
		if err := p.expect(lex.EQ); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		st.Assigns = append(st.Assigns, types.SQLAssign{Key: col, Text: val.Text})
		if p.curToken.Kind == lex.COMMA {
			p.nextToken()
			continue
		}
		break
	}

	wheres, err := p.parseWheres()
	if err != nil {
		return nil, err
	}
	st.Wheres = wheres
	return st, p.finish()
}

// parseWheres parses an optional WHERE cond [AND cond]* conjunction.
func (p *Parser) parseWheres() ([]types.SQLWhere, error) {
	if p.curToken.Kind != lex.WHERE {
		return nil, nil
	}
	p.nextToken()

	var wheres []types.SQLWhere
	for {
		col, err := p.ident("column name")
		if err != nil {
			return nil, err
		}

		var op types.Operator
		switch p.curToken.Kind {
		case lex.EQ:
			op = types.OpEq
		case lex.NE:
			op = types.OpNe
		case lex.LT:
			op = types.OpLt
		case lex.GT:
			op = types.OpGt
		case lex.LE:
			op = types.OpLe
		case lex.GE:
			op = types.OpGe
		default:
			return nil, p.errorf("expected a comparison sign, got %s (%q)",
				p.curToken.Kind, p.curToken.Value)
		}
		p.nextToken()

		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		wheres = append(wheres, types.SQLWhere{Key: col, Op: op, Text: val.Text})

		if p.curToken.Kind == lex.AND {
			p.nextToken()
			continue
		}
		break
	}
	return wheres, nil
}

func (p *Parser) parseExec() (types.Statement, error) {
	p.nextToken() // consume EXEC
	var path string
	switch p.curToken.Kind {
	case lex.STRING, lex.IDENT:
		path = p.curToken.Value
	default:
		return nil, p.errorf("expected a script path after EXEC, got %q", p.curToken.Value)
	}
	p.nextToken()
	return types.SQLExec{Path: path}, p.finish()
}
