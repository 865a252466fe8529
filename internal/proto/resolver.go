package proto

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const defaultCacheSize = 64

// Settings configures parser behavior.
type Settings struct {
	// IncludePaths are the directories searched, in order, when resolving
	// an import path.
	IncludePaths []string
	// MaxImportDepth bounds transitive import resolution. Imports beyond
	// the limit are skipped with a warning rather than followed.
	MaxImportDepth int
	// PreserveComments keeps leading comments attached to declarations.
	PreserveComments bool
	// ResolveImports controls whether imports are resolved at all. Turn it
	// off to parse a single source unit in isolation.
	ResolveImports bool
	// CacheSize is the number of parsed files kept in the import cache.
	CacheSize int
	// FS is the filesystem imports are read from.
	FS afero.Fs
	// Logger receives a warning for every skipped import.
	Logger logrus.FieldLogger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		IncludePaths:     []string{"."},
		MaxImportDepth:   10,
		PreserveComments: true,
		ResolveImports:   true,
		CacheSize:        defaultCacheSize,
		FS:               afero.NewOsFs(),
		Logger:           logrus.StandardLogger(),
	}
}

// ParserOption mutates Settings.
type ParserOption func(*Settings)

func WithIncludePaths(paths ...string) ParserOption {
	return func(s *Settings) { s.IncludePaths = paths }
}
func WithMaxImportDepth(depth int) ParserOption {
	return func(s *Settings) { s.MaxImportDepth = depth }
}
func WithPreserveComments(keep bool) ParserOption {
	return func(s *Settings) { s.PreserveComments = keep }
}
func WithImportResolution(resolve bool) ParserOption {
	return func(s *Settings) { s.ResolveImports = resolve }
}
func WithCacheSize(size int) ParserOption {
	return func(s *Settings) { s.CacheSize = size }
}
func WithFS(fs afero.Fs) ParserOption {
	return func(s *Settings) { s.FS = fs }
}
func WithLogger(log logrus.FieldLogger) ParserOption {
	return func(s *Settings) { s.Logger = log }
}

// Warning records an import that could not be resolved and was skipped.
type Warning struct {
	File   string // importing file, empty for in-memory parses
	Import string
	Err    error
}

// Parser parses proto3 sources and resolves their imports. Parsed files
// are cached by canonical path, so repeated imports of the same file cost
// one parse. A Parser is meant for sequential use; it is not safe for
// concurrent calls.
type Parser struct {
	settings Settings
	cache    *lru.Cache[string, *File]
	chain    []string
	warnings []Warning
}

// NewParser returns a Parser with the given options applied over
// DefaultSettings.
func NewParser(opts ...ParserOption) *Parser {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.FS == nil {
		settings.FS = afero.NewOsFs()
	}
	if settings.Logger == nil {
		settings.Logger = logrus.StandardLogger()
	}
	if settings.CacheSize <= 0 {
		settings.CacheSize = defaultCacheSize
	}
	// CacheSize is positive here; New only fails on a size below one.
	cache, _ := lru.New[string, *File](settings.CacheSize)
	return &Parser{settings: settings, cache: cache}
}

// Parse parses proto source held as a string. When import resolution is
// enabled, imports are looked up under the include paths; failures short
// of a circular import are recorded as warnings and skipped.
func (p *Parser) Parse(content string) (*File, error) {
	return p.parseAndResolve(content, "", 0)
}

// ParseFile reads and parses the file at path and resolves its imports.
func (p *Parser) ParseFile(path string) (*File, error) {
	return p.parseFileAtDepth(path, 0)
}

// ParseWithImports parses the file at path with additional include paths
// for this call only. The receiver's cache and include paths stay as they
// were; warnings from the call are carried over.
func (p *Parser) ParseWithImports(path string, includePaths ...string) (*File, error) {
	settings := p.settings
	settings.IncludePaths = append(append([]string(nil), p.settings.IncludePaths...), includePaths...)
	derived := &Parser{settings: settings}
	derived.cache, _ = lru.New[string, *File](settings.CacheSize)
	file, err := derived.ParseFile(path)
	p.warnings = append(p.warnings, derived.warnings...)
	return file, err
}

// Warnings returns the imports skipped since the parser was created or
// last cleared.
func (p *Parser) Warnings() []Warning {
	return p.warnings
}

// ClearCache drops cached parse results and collected warnings.
func (p *Parser) ClearCache() {
	p.cache.Purge()
	p.chain = nil
	p.warnings = nil
}

func (p *Parser) parseFileAtDepth(path string, depth int) (*File, error) {
	content, err := afero.ReadFile(p.settings.FS, path)
	if err != nil {
		return nil, &Error{
			Code:    ErrFileNotFound,
			Message: fmt.Sprintf("file not found: %s", path),
			Path:    path,
			Cause:   err,
		}
	}
	if !utf8.Valid(content) {
		return nil, &Error{
			Code:    ErrInvalidEncoding,
			Message: fmt.Sprintf("invalid encoding in file: %s", path),
			Path:    path,
		}
	}

	canonical := canonicalPath(path)
	for _, seen := range p.chain {
		if seen != canonical {
			continue
		}
		cycle := make([]string, len(p.chain), len(p.chain)+1)
		copy(cycle, p.chain)
		cycle = append(cycle, canonical)
		return nil, &Error{
			Code:    ErrCircularImport,
			Message: fmt.Sprintf("circular import detected: %s", strings.Join(cycle, " -> ")),
			Path:    path,
			Cycle:   cycle,
		}
	}
	if cached, ok := p.cache.Get(canonical); ok {
		return cached, nil
	}

	p.chain = append(p.chain, canonical)
	file, err := p.parseAndResolve(string(content), canonical, depth)
	p.chain = p.chain[:len(p.chain)-1]
	if err != nil {
		return nil, err
	}
	p.cache.Add(canonical, file)
	return file, nil
}

func (p *Parser) parseAndResolve(content, fromPath string, depth int) (*File, error) {
	file, err := parseContent(content, p.settings.PreserveComments)
	if err != nil {
		return nil, err
	}
	if p.settings.ResolveImports && len(file.Imports) > 0 {
		if err := p.resolveImports(file, fromPath, depth); err != nil {
			return nil, err
		}
	}
	return file, nil
}

// resolveImports parses every import of file into the cache. Imports under
// google/api/ are annotation definitions and carry nothing a route needs,
// so they are never read. A circular import fails the whole parse; any
// other failure is a warning.
func (p *Parser) resolveImports(file *File, fromPath string, depth int) error {
	for _, imp := range file.Imports {
		if strings.HasPrefix(imp.Path, "google/api/") {
			continue
		}
		if depth+1 > p.settings.MaxImportDepth {
			p.warn(fromPath, imp.Path, fmt.Errorf("import depth exceeds %d", p.settings.MaxImportDepth))
			continue
		}
		if _, err := p.resolveSingleImport(imp.Path, depth+1); err != nil {
			var perr *Error
			if errors.As(err, &perr) && perr.Code == ErrCircularImport {
				return err
			}
			p.warn(fromPath, imp.Path, err)
		}
	}
	return nil
}

// resolveSingleImport parses the first match for importPath under the
// include paths.
func (p *Parser) resolveSingleImport(importPath string, depth int) (*File, error) {
	for _, dir := range p.settings.IncludePaths {
		full := filepath.Join(dir, importPath)
		if ok, _ := afero.Exists(p.settings.FS, full); ok {
			return p.parseFileAtDepth(full, depth)
		}
	}
	return nil, &Error{
		Code:    ErrImportNotFound,
		Message: fmt.Sprintf("import not found: %s", importPath),
		Path:    importPath,
	}
}

func (p *Parser) warn(fromPath, importPath string, err error) {
	p.warnings = append(p.warnings, Warning{File: fromPath, Import: importPath, Err: err})
	p.settings.Logger.WithFields(logrus.Fields{
		"file":   fromPath,
		"import": importPath,
	}).Warnf("skipping unresolved import: %v", err)
}

// canonicalPath normalizes a path for cycle detection and caching. Symlink
// resolution is best effort; a path that cannot be resolved keeps its
// absolute form.
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
