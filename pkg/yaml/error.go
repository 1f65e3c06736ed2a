package yaml

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
)

const defaultSourceLines = 2

// NewPathBuilder starts a [yaml.Path], e.g. for [WithPath].
func NewPathBuilder() *yaml.PathBuilder {
	return &yaml.PathBuilder{}
}

// Error is a YAML decoding or validation error. It points at a
// [*yaml.Path] or a [*token.Token]; with Source set, the message ends in an
// excerpt of the document with the offending line marked.
type Error struct {
	Err         error
	Path        *yaml.Path
	Token       *token.Token
	Source      []byte
	SourceLines int // Lines shown before the error line.
}

// ErrorOpt sets a field of an [Error].
type ErrorOpt func(e *Error)

func NewError(err error, opts ...ErrorOpt) *Error {
	e := &Error{Err: err, SourceLines: defaultSourceLines}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func WithPath(path *yaml.Path) ErrorOpt { return func(e *Error) { e.Path = path } }

func WithToken(tk *token.Token) ErrorOpt { return func(e *Error) { e.Token = tk } }

func WithSource(source []byte) ErrorOpt { return func(e *Error) { e.Source = source } }

func WithSourceLines(lines int) ErrorOpt { return func(e *Error) { e.SourceLines = lines } }

// ErrorWrapper applies the same options to every [*Error] it wraps, such as
// the source of the document being loaded.
type ErrorWrapper struct {
	Opts []ErrorOpt
}

func NewErrorWrapper(opts ...ErrorOpt) *ErrorWrapper {
	return &ErrorWrapper{Opts: opts}
}

// Wrap applies the wrapper's options, then opts, to err if it is an
// [*Error]. Other errors are returned as they are.
func (ew *ErrorWrapper) Wrap(err error, opts ...ErrorOpt) error {
	var yamlErr *Error
	if !errors.As(err, &yamlErr) {
		return err
	}

	for _, opt := range slices.Concat(ew.Opts, opts) {
		opt(yamlErr)
	}

	return yamlErr
}

func (e Error) Unwrap() error { return e.Err }

func (e Error) Error() string {
	switch {
	case e.Err == nil:
		return ""
	case e.Path == nil && e.Token == nil:
		return e.Err.Error()
	}

	tk := e.Token
	if tk == nil {
		tk = lookupToken(e.Source, e.Path)
	}

	if tk == nil {
		return fmt.Sprintf("error at %s: %v", e.Path, e.Err)
	}

	msg := fmt.Sprintf("[%d:%d] %v", tk.Position.Line, tk.Position.Column, e.Err)
	if excerpt := e.excerpt(tk.Position.Line); excerpt != "" {
		msg += "\n" + excerpt
	}

	return msg
}

// excerpt renders the source up to line (1-based), marking that line.
func (e Error) excerpt(line int) string {
	lines := strings.Split(string(e.Source), "\n")
	if len(e.Source) == 0 || line < 1 || line > len(lines) {
		return ""
	}

	width := len(strconv.Itoa(line))
	out := make([]string, 0, e.SourceLines+1)

	for n := max(1, line-e.SourceLines); n <= line; n++ {
		marker := " "
		if n == line {
			marker = ">"
		}

		out = append(out, fmt.Sprintf("%s %*d | %s", marker, width, n, lines[n-1]))
	}

	return strings.Join(out, "\n")
}

// lookupToken finds the token path refers to in source. Mapping values are
// reported at their key, which is where readers look for them.
func lookupToken(source []byte, path *yaml.Path) *token.Token {
	if len(source) == 0 || path == nil {
		return nil
	}

	file, err := parser.ParseBytes(source, 0)
	if err != nil {
		return nil
	}

	node, err := path.FilterFile(file)
	if err != nil || node == nil {
		return nil
	}

	kf := &keyFinder{value: node}
	for _, doc := range file.Docs {
		ast.Walk(kf, doc)
	}

	if kf.key != nil {
		return kf.key
	}

	return node.GetToken()
}

type keyFinder struct {
	value ast.Node
	key   *token.Token
}

func (f *keyFinder) Visit(n ast.Node) ast.Visitor {
	if f.key != nil {
		return nil
	}

	if mv, ok := n.(*ast.MappingValueNode); ok && mv.Value == f.value {
		f.key = mv.Key.GetToken()
		return nil
	}

	return f
}
