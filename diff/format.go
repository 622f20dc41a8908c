package diff

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Side names one of the two compared graphs.
type Side int

const (
	// SideX is the first graph.
	SideX Side = iota
	// SideY is the second graph.
	SideY
)

// Options controls rendering.
type Options struct {
	// Indent is written once per nesting level. Default two spaces.
	Indent string

	// NewLine separates sibling differences. Default "\n".
	NewLine string

	// Value renders a leaf value. Default FormatValue.
	Value func(side Side, v any) string

	// Leaf renders a whole leaf instead of " x: <X> y: <Y>" when it returns
	// true. The returned text follows a single space.
	Leaf func(x, y any) (string, bool)
}

func (o Options) withDefaults() Options {
	if o.Indent == "" {
		o.Indent = "  "
	}
	if o.NewLine == "" {
		o.NewLine = "\n"
	}
	if o.Value == nil {
		o.Value = func(_ Side, v any) string { return FormatValue(v) }
	}
	return o
}

// String renders the diff with default options.
func (d *ValueDiff) String() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	_ = d.Format(&b, Options{})
	return b.String()
}

// Format writes the rendering of d to w.
func (d *ValueDiff) Format(w io.Writer, opts Options) error {
	if d == nil {
		return nil
	}
	opts = opts.withDefaults()

	var b strings.Builder
	b.WriteString(TypeName(d.X, d.Y))
	writeBody(&b, d, 0, opts)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeBody(b *strings.Builder, d *ValueDiff, depth int, opts Options) {
	switch {
	case d.loop:
		b.WriteString(" ...")
	case len(d.Diffs) == 0:
		if opts.Leaf != nil {
			if s, ok := opts.Leaf(d.X, d.Y); ok {
				b.WriteString(" ")
				b.WriteString(s)
				return
			}
		}
		b.WriteString(" x: ")
		b.WriteString(opts.Value(SideX, d.X))
		b.WriteString(" y: ")
		b.WriteString(opts.Value(SideY, d.Y))
	case len(d.Diffs) == 1:
		sd := d.Diffs[0]
		b.WriteString(" ")
		b.WriteString(sd.Label())
		writeBody(b, sd.Value(), depth, opts)
	default:
		for _, sd := range d.Diffs {
			b.WriteString(opts.NewLine)
			b.WriteString(strings.Repeat(opts.Indent, depth+1))
			b.WriteString(sd.Label())
			writeBody(b, sd.Value(), depth+1, opts)
		}
	}
}

// FormatValue renders a leaf value: nil as null, MissingItem as missing item,
// strings unquoted, references and containers by type name, anything else
// with fmt.
func FormatValue(v any) string {
	return formatValue(v)
}

func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	if IsMissing(v) {
		return "missing item"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return "null"
		}
		return shortName(rv.Type())
	default:
		return fmt.Sprint(v)
	}
}

// TypeName returns the unqualified type name used for a diff root.
func TypeName(x, y any) string {
	v := x
	if v == nil || IsMissing(v) {
		v = y
	}
	if v == nil || IsMissing(v) {
		return "null"
	}
	return shortName(reflect.TypeOf(v))
}

func shortName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		return t.String()
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i] + unqualify(name[i:])
	}
	return name
}

// unqualify drops the package qualifier of every type named in the type
// argument list args, so "[*example.com/app.Pet]" becomes "[*Pet]".
func unqualify(args string) string {
	var b strings.Builder
	start := 0
	word := func(end int) {
		w := args[start:end]
		if i := strings.LastIndexByte(w, '.'); i >= 0 {
			w = w[i+1:]
		}
		b.WriteString(w)
	}
	for i := 0; i < len(args); i++ {
		if strings.IndexByte("[]*(), ", args[i]) >= 0 {
			word(i)
			b.WriteByte(args[i])
			start = i + 1
		}
	}
	word(len(args))
	return b.String()
}
