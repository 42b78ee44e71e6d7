package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// Mini-notation parser. The grammar, informally:
//
//	stack    := sequence (',' sequence)*
//	sequence := term*
//	term     := atom modifier*
//	atom     := ident[:index] | number | '~' | '[' stack ']' | '<' term* '>'
//	modifier := '*' number | '/' number | '(' pulses ',' steps [',' rot] ')'
//	          | '!' [count] | '?' [prob] | '@' weight
//
// Errors surface here, at parse time; the patterns built below never fail a
// query.

// Parse compiles a mini-notation string into a value pattern.
func Parse(input string) (Pattern[Value], error) {
	tokens, err := lex(input)
	if err != nil {
		return Pattern[Value]{}, fmt.Errorf("parse %q: %w", input, err)
	}
	p := parser{tokens: tokens}
	pat, err := p.parseStack(typeEOF)
	if err != nil {
		return Pattern[Value]{}, fmt.Errorf("parse %q: %w", input, err)
	}
	return pat, nil
}

// MustParse is Parse for statically known patterns; it panics on error.
func MustParse(input string) Pattern[Value] {
	pat, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return pat
}

type parser struct {
	pos    int
	tokens []token
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) peek() token {
	t := p.next()
	p.pos--
	return t
}

func (p *parser) parseStack(end tokenType) (Pattern[Value], error) {
	var seqs []Pattern[Value]
	for {
		seq, err := p.parseSequence()
		if err != nil {
			return seq, err
		}
		seqs = append(seqs, seq)
		t := p.next()
		if t.typ == typeComma {
			continue
		}
		if t.typ == end {
			break
		}
		return seq, unexpected(t)
	}
	if len(seqs) == 1 {
		return seqs[0], nil
	}
	return Stack(seqs...), nil
}

func (p *parser) parseSequence() (Pattern[Value], error) {
	var (
		weights []Frac
		pats    []Pattern[Value]
	)
	for {
		switch p.peek().typ {
		case typeComma, typeRBracket, typeRAngle, typeEOF:
			switch len(pats) {
			case 0:
				return Silence[Value](), nil
			case 1:
				if weights[0].Equal(FromInt(1)) {
					return pats[0], nil
				}
			}
			return TimeCat(weights, pats), nil
		}
		pat, weight, reps, err := p.parseTerm()
		if err != nil {
			return pat, err
		}
		for i := 0; i < reps; i++ {
			pats = append(pats, pat)
			weights = append(weights, weight)
		}
	}
}

func (p *parser) parseTerm() (Pattern[Value], Frac, int, error) {
	weight := FromInt(1)
	tok := p.next()

	var (
		pat Pattern[Value]
		err error
	)
	switch tok.typ {
	case typeIdent:
		index := 0
		if colon := p.peek(); colon.typ == typeColon && colon.adjacent(tok) {
			p.next()
			num := p.next()
			if num.typ != typeNumber {
				return pat, weight, 0, unexpected(num)
			}
			index, err = strconv.Atoi(num.text)
			if err != nil {
				return pat, weight, 0, err
			}
		}
		pat = Pure(NewValue(tok.text, index))
	case typeNumber:
		pat = Pure(NewValue(tok.text, 0))
	case typeRest:
		pat = Silence[Value]()
	case typeLBracket:
		pat, err = p.parseStack(typeRBracket)
		if err != nil {
			return pat, weight, 0, err
		}
	case typeLAngle:
		pat, err = p.parseAlternation()
		if err != nil {
			return pat, weight, 0, err
		}
	default:
		return pat, weight, 0, unexpected(tok)
	}

	reps := 1
	for {
		switch nt := p.peek(); nt.typ {
		case typeStar:
			p.next()
			f, err := p.expectFrac()
			if err != nil {
				return pat, weight, 0, err
			}
			pat = pat.Fast(f)
		case typeSlash:
			p.next()
			f, err := p.expectFrac()
			if err != nil {
				return pat, weight, 0, err
			}
			pat = pat.Slow(f)
		case typeLParen:
			p.next()
			pat, err = p.parseEuclid(pat)
			if err != nil {
				return pat, weight, 0, err
			}
		case typeBang:
			bang := p.next()
			reps = 2
			if n := p.peek(); n.typ == typeNumber && n.adjacent(bang) {
				p.next()
				reps, err = strconv.Atoi(n.text)
				if err != nil {
					return pat, weight, 0, err
				}
				if reps < 0 {
					return pat, weight, 0, fmt.Errorf("negative repeat count %d", reps)
				}
			}
		case typeQuestion:
			q := p.next()
			prob := 0.5
			if n := p.peek(); n.typ == typeNumber && n.adjacent(q) {
				p.next()
				prob, err = strconv.ParseFloat(n.text, 64)
				if err != nil {
					return pat, weight, 0, err
				}
			}
			pat = pat.DegradeBy(prob)
		case typeAt:
			p.next()
			f, err := p.expectFrac()
			if err != nil {
				return pat, weight, 0, err
			}
			if f.Num <= 0 {
				return pat, weight, 0, fmt.Errorf("elongation weight must be positive, got %v", f)
			}
			weight = f
		default:
			return pat, weight, reps, nil
		}
	}
}

// parseAlternation handles <a b c>: one element per cycle, in rotation.
func (p *parser) parseAlternation() (Pattern[Value], error) {
	var pats []Pattern[Value]
	for {
		switch p.peek().typ {
		case typeRAngle:
			p.next()
			if len(pats) == 0 {
				return Silence[Value](), nil
			}
			return Cat(pats...), nil
		case typeEOF:
			return Pattern[Value]{}, unexpected(p.peek())
		}
		pat, _, reps, err := p.parseTerm()
		if err != nil {
			return pat, err
		}
		for i := 0; i < reps; i++ {
			pats = append(pats, pat)
		}
	}
}

// parseEuclid handles (pulses,steps[,rot]) after the opening paren.
func (p *parser) parseEuclid(pat Pattern[Value]) (Pattern[Value], error) {
	pulses, err := p.expectInt()
	if err != nil {
		return pat, err
	}
	if t := p.next(); t.typ != typeComma {
		return pat, unexpected(t)
	}
	steps, err := p.expectInt()
	if err != nil {
		return pat, err
	}
	rot := 0
	t := p.next()
	if t.typ == typeComma {
		rot, err = p.expectInt()
		if err != nil {
			return pat, err
		}
		t = p.next()
	}
	if t.typ != typeRParen {
		return pat, unexpected(t)
	}
	if pulses < 0 || steps <= 0 || pulses > steps {
		return pat, fmt.Errorf("euclid(%d,%d) out of range", pulses, steps)
	}
	return Euclid(pat, pulses, steps, rot), nil
}

func (p *parser) expectInt() (int, error) {
	t := p.next()
	if t.typ != typeNumber || strings.Contains(t.text, ".") {
		return 0, unexpected(t)
	}
	return strconv.Atoi(t.text)
}

func (p *parser) expectFrac() (Frac, error) {
	t := p.next()
	if t.typ != typeNumber {
		return Frac{}, unexpected(t)
	}
	return fracFromText(t.text)
}

func fracFromText(s string) (Frac, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Frac{}, err
		}
		return FromFloat(f), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Frac{}, err
	}
	return FromInt(n), nil
}

func unexpected(t token) error {
	if t.typ == typeEOF {
		return fmt.Errorf("unexpected end of input")
	}
	return fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
}
