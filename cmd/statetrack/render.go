package main

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/statetrack/diff"
)

// renderer turns a diff into text.
type renderer struct {
	removed *color.Color
	added   *color.Color
	inline  bool
}

func newRenderer(colored, inline bool) *renderer {
	r := &renderer{
		removed: color.New(color.FgRed),
		added:   color.New(color.FgGreen),
		inline:  inline,
	}
	if colored {
		r.removed.EnableColor()
		r.added.EnableColor()
	} else {
		r.removed.DisableColor()
		r.added.DisableColor()
	}
	return r
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render returns the rendering of d, or "" when d is nil.
func (r *renderer) Render(d *diff.ValueDiff) string {
	if d == nil {
		return ""
	}
	opts := diff.Options{Value: r.value}
	if r.inline {
		opts.Leaf = r.leaf
	}
	var b strings.Builder
	_ = d.Format(&b, opts)
	return b.String()
}

func (r *renderer) value(side diff.Side, v any) string {
	s := diff.FormatValue(v)
	if side == diff.SideX {
		return r.removed.Sprint(s)
	}
	return r.added.Sprint(s)
}

// leaf renders two strings as one character-level diff: removed runs as
// [-text-], inserted runs as {+text+}.
func (r *renderer) leaf(x, y any) (string, bool) {
	xs, ok := x.(string)
	if !ok {
		return "", false
	}
	ys, ok := y.(string)
	if !ok {
		return "", false
	}

	dmp := diffpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(xs, ys, false))

	var b strings.Builder
	b.WriteString("~ ")
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffpatch.DiffDelete:
			b.WriteString(r.removed.Sprint("[-" + d.Text + "-]"))
		case diffpatch.DiffInsert:
			b.WriteString(r.added.Sprint("{+" + d.Text + "+}"))
		}
	}
	return b.String(), true
}
