package proto

import (
	"fmt"
	"strconv"
	"strings"
)

const eof = rune(0)

// parser is the recursive-descent engine for a single parse call. It walks
// the source rune by rune and tracks line/column for error reporting.
// A failed parse yields no File; there is no partial-result recovery.
type parser struct {
	src              []rune
	pos              int
	line             int
	col              int
	preserveComments bool
}

// checkpoint captures a scan position so speculative reads can back out.
type checkpoint struct {
	pos, line, col int
}

func newParser(content string, preserveComments bool) *parser {
	return &parser{src: []rune(content), line: 1, preserveComments: preserveComments}
}

// parseContent parses one proto source unit. It runs the grammar only;
// import resolution is the Parser's job.
func parseContent(content string, preserveComments bool) (*File, error) {
	p := newParser(content, preserveComments)
	file := &File{Syntax: Proto3}

	// Leading comments before the syntax statement belong to the file
	// header and are consumed without being attached anywhere.
	if _, err := p.readComments(); err != nil {
		return nil, err
	}

	if err := p.parseSyntax(file); err != nil {
		return nil, err
	}
	if err := p.parsePackage(file); err != nil {
		return nil, err
	}
	if err := p.parseImports(file); err != nil {
		return nil, err
	}
	if err := p.parseFileOptions(file); err != nil {
		return nil, err
	}
	if err := p.parseTopLevel(file); err != nil {
		return nil, err
	}
	return file, nil
}

func (p *parser) parseSyntax(file *File) error {
	cp := p.save()
	if _, err := p.readComments(); err != nil {
		return err
	}
	if w := p.readWord(); w != "syntax" {
		p.restore(cp)
		return nil
	}
	if err := p.expectRune('='); err != nil {
		return err
	}
	p.skipWhitespace()
	version, err := p.readQuotedString()
	if err != nil {
		return err
	}
	switch Syntax(version) {
	case Proto2, Proto3:
		file.Syntax = Syntax(version)
	default:
		return p.unexpected(version, `"proto2" or "proto3"`)
	}
	return p.expectRune(';')
}

func (p *parser) parsePackage(file *File) error {
	cp := p.save()
	if _, err := p.readComments(); err != nil {
		return err
	}
	if w := p.readWord(); w != "package" {
		p.restore(cp)
		return nil
	}
	p.skipWhitespace()
	name, err := p.readQualified()
	if err != nil {
		return err
	}
	file.Package = name
	return p.expectRune(';')
}

func (p *parser) parseImports(file *File) error {
	for {
		cp := p.save()
		if _, err := p.readComments(); err != nil {
			return err
		}
		if w := p.readWord(); w != "import" {
			p.restore(cp)
			return nil
		}
		imp := Import{Kind: ImportNormal}
		p.skipWhitespace()
		if p.peek() != '"' {
			switch kw := p.readWord(); kw {
			case "public":
				imp.Kind = ImportPublic
			case "weak":
				imp.Kind = ImportWeak
			default:
				return p.unexpected(p.wordOrRune(kw), `"public", "weak", or a quoted import path`)
			}
			p.skipWhitespace()
		}
		path, err := p.readQuotedString()
		if err != nil {
			return err
		}
		imp.Path = path
		if err := p.expectRune(';'); err != nil {
			return err
		}
		file.Imports = append(file.Imports, imp)
	}
}

func (p *parser) parseFileOptions(file *File) error {
	for {
		cp := p.save()
		if _, err := p.readComments(); err != nil {
			return err
		}
		if w := p.readWord(); w != "option" {
			p.restore(cp)
			return nil
		}
		opt, err := p.parseOptionTail()
		if err != nil {
			return err
		}
		file.Options = append(file.Options, opt)
	}
}

// parseTopLevel consumes service/message/enum definitions in any order.
// Anything else that is not whitespace or a comment is a hard error.
func (p *parser) parseTopLevel(file *File) error {
	for {
		comments, err := p.readComments()
		if err != nil {
			return err
		}
		if p.peek() == eof {
			return nil
		}
		switch w := p.readWord(); w {
		case "service":
			svc, err := p.parseService(comments)
			if err != nil {
				return err
			}
			file.Services = append(file.Services, svc)
		case "message":
			msg, err := p.parseMessage(comments)
			if err != nil {
				return err
			}
			file.Messages = append(file.Messages, msg)
		case "enum":
			en, err := p.parseEnum(comments)
			if err != nil {
				return err
			}
			file.Enums = append(file.Enums, en)
		default:
			return &Error{
				Code:    ErrInvalidSyntax,
				Message: fmt.Sprintf("invalid syntax: unexpected content at end of file: %q on line %d", p.wordOrRune(w), p.line),
				Line:    p.line,
				Column:  p.col,
			}
		}
	}
}

func (p *parser) parseService(comments []string) (*Service, error) {
	p.skipWhitespace()
	name := p.readWord()
	if name == "" {
		return nil, p.unexpected(tokenDesc(p.peek()), "a service name")
	}
	if err := p.expectRune('{'); err != nil {
		return nil, err
	}
	svc := &Service{Name: name, Comments: p.keep(comments)}
	for {
		itemComments, err := p.readComments()
		if err != nil {
			return nil, err
		}
		switch r := p.peek(); r {
		case '}':
			p.read()
			return svc, nil
		case ';':
			p.read()
		case eof:
			return nil, p.unexpected(tokenDesc(eof), "'}'")
		default:
			switch w := p.readWord(); w {
			case "rpc":
				m, err := p.parseRPC(itemComments)
				if err != nil {
					return nil, err
				}
				svc.Methods = append(svc.Methods, m)
			case "option":
				opt, err := p.parseOptionTail()
				if err != nil {
					return nil, err
				}
				svc.Options = append(svc.Options, opt)
			default:
				return nil, p.unexpected(p.wordOrRune(w), `"rpc", "option", or '}'`)
			}
		}
	}
}

// parseRPC parses one method declaration. A method option named
// google.api.http (parenthesized or not) is decoded into the method's
// HTTPRule instead of its option list.
func (p *parser) parseRPC(comments []string) (*RPC, error) {
	p.skipWhitespace()
	name := p.readWord()
	if name == "" {
		return nil, p.unexpected(tokenDesc(p.peek()), "an rpc name")
	}
	if err := p.expectRune('('); err != nil {
		return nil, err
	}
	input, err := p.parseRPCType()
	if err != nil {
		return nil, err
	}
	if err := p.expectRune(')'); err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if kw := p.readWord(); kw != "returns" {
		return nil, p.unexpected(p.wordOrRune(kw), `"returns"`)
	}
	if err := p.expectRune('('); err != nil {
		return nil, err
	}
	output, err := p.parseRPCType()
	if err != nil {
		return nil, err
	}
	if err := p.expectRune(')'); err != nil {
		return nil, err
	}

	m := &RPC{Name: name, Input: input, Output: output, Comments: p.keep(comments)}
	p.skipWhitespace()
	switch p.peek() {
	case ';':
		p.read()
		return m, nil
	case '{':
		p.read()
	default:
		return nil, p.unexpected(tokenDesc(p.peek()), "'{' or ';'")
	}

	for {
		if _, err := p.readComments(); err != nil {
			return nil, err
		}
		switch r := p.peek(); r {
		case '}':
			p.read()
			return m, nil
		case ';':
			p.read()
		case eof:
			return nil, p.unexpected(tokenDesc(eof), "'}'")
		default:
			if w := p.readWord(); w != "option" {
				return nil, p.unexpected(p.wordOrRune(w), `"option" or '}'`)
			}
			opt, err := p.parseOptionTail()
			if err != nil {
				return nil, err
			}
			if opt.Name == "google.api.http" || opt.Name == "(google.api.http)" {
				if rule := decodeHTTPRule(opt.Value); rule != nil {
					m.HTTPRule = rule
				}
			} else {
				m.Options = append(m.Options, opt)
			}
		}
	}
}

func (p *parser) parseRPCType() (TypeReference, error) {
	p.skipWhitespace()
	word, err := p.readQualified()
	if err != nil {
		return TypeReference{}, p.unexpected(tokenDesc(p.peek()), "a type name")
	}
	if word != "stream" {
		return TypeReference{Name: word}, nil
	}
	p.skipWhitespace()
	inner, err := p.readQualified()
	if err != nil {
		return TypeReference{}, p.unexpected(tokenDesc(p.peek()), "a type name after \"stream\"")
	}
	return TypeReference{Name: inner, Stream: true}, nil
}

func (p *parser) parseMessage(comments []string) (*Message, error) {
	p.skipWhitespace()
	name := p.readWord()
	if name == "" {
		return nil, p.unexpected(tokenDesc(p.peek()), "a message name")
	}
	if err := p.expectRune('{'); err != nil {
		return nil, err
	}
	msg := &Message{Name: name, Comments: p.keep(comments)}
	for {
		itemComments, err := p.readComments()
		if err != nil {
			return nil, err
		}
		switch r := p.peek(); r {
		case '}':
			p.read()
			return msg, nil
		case ';':
			p.read()
		case eof:
			return nil, p.unexpected(tokenDesc(eof), "'}'")
		default:
			switch w := p.readWord(); w {
			case "message":
				nested, err := p.parseMessage(itemComments)
				if err != nil {
					return nil, err
				}
				msg.Nested = append(msg.Nested, nested)
			case "enum":
				nested, err := p.parseEnum(itemComments)
				if err != nil {
					return nil, err
				}
				msg.Enums = append(msg.Enums, nested)
			case "option":
				opt, err := p.parseOptionTail()
				if err != nil {
					return nil, err
				}
				msg.Options = append(msg.Options, opt)
			case "":
				return nil, p.unexpected(tokenDesc(p.peek()), "a field, nested definition, or '}'")
			default:
				f, err := p.parseField(itemComments, w)
				if err != nil {
					return nil, err
				}
				msg.Fields = append(msg.Fields, f)
			}
		}
	}
}

// parseField parses a field whose first word has already been read; the
// word is either a label or the start of the field type.
func (p *parser) parseField(comments []string, first string) (*Field, error) {
	f := &Field{Label: LabelOptional, Comments: p.keep(comments)}
	var typeName string
	var err error
	switch first {
	case "optional", "required", "repeated":
		f.Label = FieldLabel(first)
		p.skipWhitespace()
		typeName, err = p.readQualified()
		if err != nil {
			return nil, p.unexpected(tokenDesc(p.peek()), "a field type")
		}
	default:
		typeName, err = p.continueQualified(first)
		if err != nil {
			return nil, err
		}
	}
	f.Type = TypeReference{Name: typeName}

	p.skipWhitespace()
	f.Name = p.readWord()
	if f.Name == "" {
		return nil, p.unexpected(tokenDesc(p.peek()), "a field name")
	}
	if err := p.expectRune('='); err != nil {
		return nil, err
	}
	p.skipWhitespace()
	f.Number, err = p.readFieldNumber()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peek() == '[' {
		f.Options, err = p.parseBracketOptions()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectRune(';'); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) parseEnum(comments []string) (*Enum, error) {
	p.skipWhitespace()
	name := p.readWord()
	if name == "" {
		return nil, p.unexpected(tokenDesc(p.peek()), "an enum name")
	}
	if err := p.expectRune('{'); err != nil {
		return nil, err
	}
	en := &Enum{Name: name, Comments: p.keep(comments)}
	for {
		itemComments, err := p.readComments()
		if err != nil {
			return nil, err
		}
		switch r := p.peek(); r {
		case '}':
			p.read()
			return en, nil
		case ';':
			p.read()
		case eof:
			return nil, p.unexpected(tokenDesc(eof), "'}'")
		default:
			w := p.readWord()
			switch w {
			case "option":
				opt, err := p.parseOptionTail()
				if err != nil {
					return nil, err
				}
				en.Options = append(en.Options, opt)
			case "":
				return nil, p.unexpected(tokenDesc(p.peek()), "an enum value or '}'")
			default:
				v := EnumValue{Name: w, Comments: p.keep(itemComments)}
				if err := p.expectRune('='); err != nil {
					return nil, err
				}
				p.skipWhitespace()
				v.Number = p.readEnumNumber()
				p.skipWhitespace()
				if p.peek() == '[' {
					v.Options, err = p.parseBracketOptions()
					if err != nil {
						return nil, err
					}
				}
				if err := p.expectRune(';'); err != nil {
					return nil, err
				}
				en.Values = append(en.Values, v)
			}
		}
	}
}

// parseBracketOptions parses [name = value, ...] after a field or enum
// value declaration. An empty bracket pair is accepted.
func (p *parser) parseBracketOptions() ([]Option, error) {
	if err := p.expectRune('['); err != nil {
		return nil, err
	}
	var opts []Option
	for {
		p.skipWhitespace()
		if p.peek() == ']' {
			p.read()
			return opts, nil
		}
		name, err := p.parseOptionName()
		if err != nil {
			return nil, err
		}
		if err := p.expectRune('='); err != nil {
			return nil, err
		}
		value, err := p.parseOptionValue()
		if err != nil {
			return nil, err
		}
		opts = append(opts, Option{Name: name, Value: value})
		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.read()
		case ']':
		default:
			return nil, p.unexpected(tokenDesc(p.peek()), "',' or ']'")
		}
	}
}

// parseOptionTail parses "name = value ;" after the option keyword.
func (p *parser) parseOptionTail() (Option, error) {
	p.skipWhitespace()
	name, err := p.parseOptionName()
	if err != nil {
		return Option{}, err
	}
	if err := p.expectRune('='); err != nil {
		return Option{}, err
	}
	value, err := p.parseOptionValue()
	if err != nil {
		return Option{}, err
	}
	if err := p.expectRune(';'); err != nil {
		return Option{}, err
	}
	return Option{Name: name, Value: value}, nil
}

// parseOptionName handles the three name forms: parenthesized extension
// names like (google.api.http) with the parens stripped, dotted names, and
// dotted names with bracketed indices which keep their brackets.
func (p *parser) parseOptionName() (string, error) {
	if p.peek() == '(' {
		p.read()
		name, err := p.readQualified()
		if err != nil {
			return "", err
		}
		if err := p.expectRune(')'); err != nil {
			return "", err
		}
		return name, nil
	}
	first := p.readWord()
	if first == "" {
		return "", p.unexpected(tokenDesc(p.peek()), "an option name")
	}
	var b strings.Builder
	b.WriteString(first)
	for {
		switch p.peek() {
		case '.':
			p.read()
			w := p.readWord()
			if w == "" {
				return "", p.unexpected(tokenDesc(p.peek()), "an identifier")
			}
			b.WriteByte('.')
			b.WriteString(w)
		case '[':
			p.read()
			inner, err := p.readQualified()
			if err != nil {
				return "", err
			}
			if err := p.expectRune(']'); err != nil {
				return "", err
			}
			b.WriteByte('[')
			b.WriteString(inner)
			b.WriteByte(']')
		default:
			return b.String(), nil
		}
	}
}

func (p *parser) parseOptionValue() (OptionValue, error) {
	p.skipWhitespace()
	switch r := p.peek(); {
	case r == '"':
		s, err := p.readQuotedString()
		if err != nil {
			return nil, err
		}
		return StringValue{Value: s}, nil
	case r == '{':
		return p.parseMessageLiteral()
	case r == '-' || isDigit(r):
		n, err := p.readNumber()
		if err != nil {
			return nil, err
		}
		return NumberValue{Value: n}, nil
	case isLetter(r) || r == '_':
		switch w := p.readWord(); w {
		case "true":
			return BoolValue{Value: true}, nil
		case "false":
			return BoolValue{Value: false}, nil
		default:
			return IdentifierValue{Value: w}, nil
		}
	default:
		return nil, p.unexpected(tokenDesc(r), "an option value")
	}
}

// parseMessageLiteral parses { key: value ... } with optional commas
// between entries. Values recurse, so nested literals come for free.
func (p *parser) parseMessageLiteral() (OptionValue, error) {
	if err := p.expectRune('{'); err != nil {
		return nil, err
	}
	var mv MessageValue
	for {
		p.skipWhitespace()
		switch p.peek() {
		case '}':
			p.read()
			return mv, nil
		case eof:
			return nil, p.unexpected(tokenDesc(eof), "'}'")
		}
		name := p.readWord()
		if name == "" {
			return nil, p.unexpected(tokenDesc(p.peek()), "a field name")
		}
		if err := p.expectRune(':'); err != nil {
			return nil, err
		}
		value, err := p.parseOptionValue()
		if err != nil {
			return nil, err
		}
		mv.Entries = append(mv.Entries, MessageEntry{Name: name, Value: value})
		p.skipWhitespace()
		if p.peek() == ',' {
			p.read()
		}
	}
}

var httpVerbs = map[string]struct{}{
	"get": {}, "post": {}, "put": {}, "patch": {}, "delete": {},
}

// decodeHTTPRule converts a google.api.http message literal into an
// HTTPRule. It returns nil when the value is not a message literal or
// names no verb; additional_bindings entries are not decoded here.
func decodeHTTPRule(value OptionValue) *HTTPRule {
	mv, ok := value.(MessageValue)
	if !ok {
		return nil
	}
	rule := &HTTPRule{}
	for _, e := range mv.Entries {
		if _, verb := httpVerbs[e.Name]; verb {
			if s, ok := e.Value.(StringValue); ok {
				rule.Verb = e.Name
				rule.Path = s.Value
			}
			continue
		}
		if e.Name == "body" {
			if s, ok := e.Value.(StringValue); ok {
				rule.Body = s.Value
			}
		}
	}
	if rule.Verb == "" {
		return nil
	}
	return rule
}

// Scanner primitives.

func (p *parser) save() checkpoint { return checkpoint{p.pos, p.line, p.col} }

func (p *parser) restore(c checkpoint) { p.pos, p.line, p.col = c.pos, c.line, c.col }

func (p *parser) peek() rune {
	if p.pos >= len(p.src) {
		return eof
	}
	return p.src[p.pos]
}

func (p *parser) read() rune {
	if p.pos >= len(p.src) {
		return eof
	}
	r := p.src[p.pos]
	p.pos++
	if r == '\n' {
		p.line++
		p.col = 0
	} else {
		p.col++
	}
	return r
}

func (p *parser) skipWhitespace() {
	for isWhitespace(p.peek()) {
		p.read()
	}
}

// expectRune skips whitespace, then consumes the wanted rune or fails.
func (p *parser) expectRune(want rune) error {
	p.skipWhitespace()
	if r := p.peek(); r != want {
		return p.unexpected(tokenDesc(r), fmt.Sprintf("'%c'", want))
	}
	p.read()
	return nil
}

// readWord consumes an identifier: [A-Za-z_][A-Za-z0-9_]*. It returns the
// empty string when the next rune cannot start one.
func (p *parser) readWord() string {
	var b strings.Builder
	for {
		r := p.peek()
		if isLetter(r) || r == '_' || (b.Len() > 0 && isDigit(r)) {
			b.WriteRune(r)
			p.read()
			continue
		}
		return b.String()
	}
}

// readQualified consumes a dot-joined identifier sequence.
func (p *parser) readQualified() (string, error) {
	first := p.readWord()
	if first == "" {
		return "", p.unexpected(tokenDesc(p.peek()), "an identifier")
	}
	return p.continueQualified(first)
}

func (p *parser) continueQualified(first string) (string, error) {
	var b strings.Builder
	b.WriteString(first)
	for p.peek() == '.' {
		p.read()
		w := p.readWord()
		if w == "" {
			return "", p.unexpected(tokenDesc(p.peek()), "an identifier")
		}
		b.WriteByte('.')
		b.WriteString(w)
	}
	return b.String(), nil
}

// readComments skips whitespace and collects consecutive // and block
// comments, trimmed, until something else comes up.
func (p *parser) readComments() ([]string, error) {
	var comments []string
	for {
		p.skipWhitespace()
		if p.peek() != '/' {
			return comments, nil
		}
		cp := p.save()
		p.read()
		switch p.peek() {
		case '/':
			p.read()
			var b strings.Builder
			for p.peek() != '\n' && p.peek() != eof {
				b.WriteRune(p.read())
			}
			comments = append(comments, strings.TrimSpace(b.String()))
		case '*':
			p.read()
			text, err := p.readBlockComment()
			if err != nil {
				return nil, err
			}
			comments = append(comments, strings.TrimSpace(text))
		default:
			p.restore(cp)
			return comments, nil
		}
	}
}

func (p *parser) readBlockComment() (string, error) {
	var b strings.Builder
	for {
		r := p.read()
		if r == eof {
			return "", p.syntaxErrorf("unterminated block comment")
		}
		if r == '*' && p.peek() == '/' {
			p.read()
			return b.String(), nil
		}
		b.WriteRune(r)
	}
}

// readQuotedString consumes a double-quoted string, decoding the escape
// sequences \" \\ \n \r \t. Newlines inside the literal are kept as-is.
func (p *parser) readQuotedString() (string, error) {
	if err := p.expectRune('"'); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		switch r := p.read(); r {
		case '"':
			return b.String(), nil
		case '\\':
			switch esc := p.read(); esc {
			case '"':
				b.WriteRune('"')
			case '\\':
				b.WriteRune('\\')
			case 'n':
				b.WriteRune('\n')
			case 'r':
				b.WriteRune('\r')
			case 't':
				b.WriteRune('\t')
			default:
				return "", p.syntaxErrorf("invalid escape sequence in string literal: \\%s", tokenDesc(esc))
			}
		case eof:
			return "", p.syntaxErrorf("unterminated string literal")
		default:
			b.WriteRune(r)
		}
	}
}

// readNumber consumes an optionally signed decimal with optional fraction
// and exponent and returns it as float64.
func (p *parser) readNumber() (float64, error) {
	var b strings.Builder
	if p.peek() == '-' {
		b.WriteRune(p.read())
	}
	if !isDigit(p.peek()) {
		return 0, p.unexpected(tokenDesc(p.peek()), "a digit")
	}
	for isDigit(p.peek()) {
		b.WriteRune(p.read())
	}
	if p.peek() == '.' {
		cp := p.save()
		p.read()
		if isDigit(p.peek()) {
			b.WriteByte('.')
			for isDigit(p.peek()) {
				b.WriteRune(p.read())
			}
		} else {
			p.restore(cp)
		}
	}
	if r := p.peek(); r == 'e' || r == 'E' {
		cp := p.save()
		p.read()
		sign := ""
		if s := p.peek(); s == '+' || s == '-' {
			sign = string(p.read())
		}
		if isDigit(p.peek()) {
			b.WriteRune(r)
			b.WriteString(sign)
			for isDigit(p.peek()) {
				b.WriteRune(p.read())
			}
		} else {
			p.restore(cp)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		v = 0
	}
	return v, nil
}

func (p *parser) readFieldNumber() (uint32, error) {
	if !isDigit(p.peek()) {
		return 0, p.unexpected(tokenDesc(p.peek()), "a field number")
	}
	var b strings.Builder
	for isDigit(p.peek()) {
		b.WriteRune(p.read())
	}
	n, err := strconv.ParseUint(b.String(), 10, 32)
	if err != nil {
		n = 0
	}
	return uint32(n), nil
}

// readEnumNumber consumes an enum value number, which may be negative.
func (p *parser) readEnumNumber() int32 {
	negative := false
	if p.peek() == '-' {
		p.read()
		negative = true
	}
	var b strings.Builder
	for isDigit(p.peek()) {
		b.WriteRune(p.read())
	}
	n, err := strconv.ParseInt(b.String(), 10, 32)
	if err != nil {
		n = 0
	}
	if negative {
		return int32(-n)
	}
	return int32(n)
}

func (p *parser) keep(comments []string) []string {
	if p.preserveComments {
		return comments
	}
	return nil
}

func (p *parser) unexpected(found, expected string) *Error {
	msg := fmt.Sprintf("unexpected token %q at line %d, expected %s", found, p.line, expected)
	if found == "end of file" {
		msg = fmt.Sprintf("unexpected end of file at line %d, expected %s", p.line, expected)
	}
	return &Error{Code: ErrUnexpectedToken, Message: msg, Line: p.line, Column: p.col}
}

func (p *parser) syntaxErrorf(format string, args ...any) *Error {
	return &Error{
		Code:    ErrSyntax,
		Message: fmt.Sprintf("syntax error at line %d, column %d: %s", p.line, p.col, fmt.Sprintf(format, args...)),
		Line:    p.line,
		Column:  p.col,
	}
}

// wordOrRune describes what was just seen: the word when one was read, or
// the next rune when the reader is stuck on punctuation.
func (p *parser) wordOrRune(w string) string {
	if w != "" {
		return w
	}
	return tokenDesc(p.peek())
}

func tokenDesc(r rune) string {
	if r == eof {
		return "end of file"
	}
	return string(r)
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
