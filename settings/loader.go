package settings

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned when a settings file extension is not recognized.
var ErrUnknownFormat = errors.New("unknown settings file format")

// Format is a settings file encoding.
type Format int

const (
	// FormatTOML is a TOML document.
	FormatTOML Format = iota

	// FormatYAML is a YAML document.
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatFor returns the format implied by a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return FormatTOML, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// ParseError reports a settings file that could not be decoded.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// document is the on-disk shape of a settings file.
type document struct {
	ReferenceHandling string   `toml:"reference_handling" yaml:"reference_handling"`
	IgnoreTypes       []string `toml:"ignore_types" yaml:"ignore_types"`
	IgnoreMembers     []string `toml:"ignore_members" yaml:"ignore_members"`
	ImmutableTypes    []string `toml:"immutable_types" yaml:"immutable_types"`
}

// Loader reads settings files.
type Loader struct {
	readFile func(path string) ([]byte, error)
	fallback ReferenceHandling
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS reads files from fsys instead of the operating system.
func WithFS(fsys fs.FS) LoaderOption {
	return func(l *Loader) {
		l.readFile = func(path string) ([]byte, error) {
			return fs.ReadFile(fsys, path)
		}
	}
}

// WithFallback sets the handling used when a file is missing or does not name one.
func WithFallback(h ReferenceHandling) LoaderOption {
	return func(l *Loader) {
		l.fallback = h
	}
}

// NewLoader creates a loader reading from the operating system.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		readFile: os.ReadFile,
		fallback: Structural,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads settings from path using the default loader.
func Load(path string) (*Settings, bool, error) {
	return NewLoader().Load(path)
}

// Load reads settings from path. A missing file is not an error: the fallback
// defaults are returned with found set to false.
func (l *Loader) Load(path string) (s *Settings, found bool, err error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, false, err
	}

	data, err := l.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(l.fallback), false, nil
		}
		return nil, false, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	s, err = l.parse(path, format, data)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// LoadReader reads settings encoded in format from r.
func (l *Loader) LoadReader(r io.Reader, format Format) (*Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return l.parse("<reader>", format, data)
}

// parse decodes and resolves one document.
func (l *Loader) parse(source string, format Format, data []byte) (*Settings, error) {
	var doc document
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			pe := &ParseError{Path: source, Message: err.Error(), Err: err}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				pe.Line, pe.Column = de.Position()
			}
			return nil, pe
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	default:
		return nil, fmt.Errorf("%s: %w", source, ErrUnknownFormat)
	}

	return l.resolve(source, doc)
}

// resolve turns a decoded document into interned Settings.
func (l *Loader) resolve(source string, doc document) (*Settings, error) {
	handling := l.fallback
	if doc.ReferenceHandling != "" {
		h, err := ParseReferenceHandling(doc.ReferenceHandling)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		handling = h
	}

	var opts []Option
	for _, name := range doc.IgnoreTypes {
		opts = append(opts, IgnoreTypeName(strings.TrimSpace(name)))
	}
	for _, name := range doc.IgnoreMembers {
		name = strings.TrimSpace(name)
		if strings.LastIndex(name, ".") <= 0 {
			return nil, &ParseError{
				Path:    source,
				Message: fmt.Sprintf("ignore_members entry %q is not of the form Type.Member", name),
			}
		}
		opts = append(opts, IgnoreMemberName(name))
	}
	for _, name := range doc.ImmutableTypes {
		opts = append(opts, ImmutableTypeName(strings.TrimSpace(name)))
	}

	return New(handling, opts...), nil
}
