package driver

import (
	"fmt"
	"strings"
	"text/scanner"

	"golang.org/x/text/unicode/norm"

	"hlsched/internal/ast"
	"hlsched/internal/source"
)

var binaryOps = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod",
	"<": "lt", ">": "gt", "<=": "le", ">=": "ge", "==": "eq", "!=": "ne",
}

// precedence of the binary operators; higher binds tighter.
var precedence = map[string]int{
	"<": 1, ">": 1, "<=": 1, ">=": 1, "==": 1, "!=": 1,
	"+": 2, "-": 2,
	"*": 3, "/": 3, "%": 3,
}

// exprParser reads the expression language of statement strings:
//
//	x  42  1.5  true  ?  *x  -e  !e  f(a, b)  a + b * c  (e)
//
// Every node gets the span of the whole string.
type exprParser struct {
	sc   scanner.Scanner
	tok  rune
	text string
	span source.Span
	err  error
}

func parseExpr(src string, span source.Span) (ast.Expr, error) {
	p := &exprParser{span: span}
	p.sc.Init(strings.NewReader(src))
	p.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats
	p.sc.Error = func(_ *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = fmt.Errorf("%q: %s", src, msg)
		}
	}
	p.next()
	e := p.binary(1)
	if p.err == nil && p.tok != scanner.EOF {
		p.fail("unexpected %q", p.text)
	}
	if p.err != nil {
		return ast.Expr{}, fmt.Errorf("expression %q: %w", src, p.err)
	}
	return e, nil
}

func (p *exprParser) next() {
	p.tok = p.sc.Scan()
	p.text = p.sc.TokenText()
	// two-character comparisons
	if (p.tok == '<' || p.tok == '>' || p.tok == '=' || p.tok == '!') && p.sc.Peek() == '=' {
		p.sc.Next()
		p.text += "="
	}
}

func (p *exprParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf(format, args...)
	}
}

func (p *exprParser) expect(r rune) {
	if p.tok != r {
		p.fail("expected %q, found %q", string(r), p.text)
		return
	}
	p.next()
}

func (p *exprParser) binary(minPrec int) ast.Expr {
	lhs := p.unary()
	for p.err == nil {
		op := p.text
		prec, ok := precedence[op]
		if !ok || prec < minPrec {
			return lhs
		}
		p.next()
		rhs := p.binary(prec + 1)
		lhs = ast.Expr{Kind: ast.ExprBinary, Span: p.span, Name: binaryOps[op], Args: []ast.Expr{lhs, rhs}}
	}
	return lhs
}

func (p *exprParser) unary() ast.Expr {
	switch p.text {
	case "-", "!":
		name := "neg"
		if p.text == "!" {
			name = "not"
		}
		p.next()
		arg := p.unary()
		return ast.Expr{Kind: ast.ExprUnary, Span: p.span, Name: name, Args: []ast.Expr{arg}}
	case "*":
		p.next()
		if p.tok != scanner.Ident {
			p.fail("expected a variable after *, found %q", p.text)
			return ast.Expr{}
		}
		name := ident(p.text)
		p.next()
		return ast.Expr{Kind: ast.ExprLoad, Span: p.span, Name: name}
	}
	return p.primary()
}

func (p *exprParser) primary() ast.Expr {
	e := ast.Expr{Span: p.span, Name: p.text}
	switch p.tok {
	case scanner.Int:
		e.Kind = ast.ExprInt
		p.next()
	case scanner.Float:
		e.Kind = ast.ExprFloat
		p.next()
	case '?':
		e.Kind = ast.ExprHole
		p.next()
	case '(':
		p.next()
		e = p.binary(1)
		p.expect(')')
	case scanner.Ident:
		if e.Name == "true" || e.Name == "false" {
			e.Kind = ast.ExprBool
			p.next()
			return e
		}
		e.Name = ident(e.Name)
		e.Kind = ast.ExprVar
		p.next()
		if p.tok == '(' {
			e.Kind = ast.ExprCall
			e.Args = p.args()
		}
	default:
		if p.tok == scanner.EOF {
			p.fail("unexpected end of expression")
		} else {
			p.fail("unexpected %q", p.text)
		}
	}
	return e
}

func (p *exprParser) args() []ast.Expr {
	p.expect('(')
	var res []ast.Expr
	for p.err == nil && p.tok != ')' {
		res = append(res, p.binary(1))
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect(')')
	return res
}

// ident normalizes an identifier to NFC so that differently composed
// spellings name the same variable.
func ident(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
