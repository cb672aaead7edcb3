package wix

import (
	"bytes"
	"encoding/xml"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/clbanning/mxj"
	"github.com/kolide/constructor/pkg/packaging"
	"github.com/pkg/errors"
)

// Fragment is a pre-built chunk of wix xml, spliced into the template
// at `@Marker@`. It is never escaped.
type Fragment struct {
	Marker    string
	Lines     []string
	Separator string
}

// LoadTemplate reads a template from fsys.
func LoadTemplate(fsys fs.FS, name string) (string, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", errors.Wrapf(err, "reading template %s", name)
	}
	return string(b), nil
}

// Preprocess resolves `#if <selector>`, `#else`, and `#endif` lines
// against the platform namespace. Directives may nest. Directive lines
// are dropped from the output.
func Preprocess(text string, ns packaging.Namespace) (string, error) {
	type frame struct {
		parentActive bool
		cond         bool
		inElse       bool
	}

	var stack []frame
	active := func() bool {
		if len(stack) == 0 {
			return true
		}
		f := stack[len(stack)-1]
		return f.parentActive && (f.cond != f.inElse)
	}

	var out []string
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#if "):
			cond, err := ns.Eval(strings.TrimPrefix(trimmed, "#if "))
			if err != nil {
				return "", errors.Wrapf(err, "line %d", i+1)
			}
			stack = append(stack, frame{parentActive: active(), cond: cond})
		case trimmed == "#else":
			if len(stack) == 0 || stack[len(stack)-1].inElse {
				return "", errors.Errorf("line %d: unexpected #else", i+1)
			}
			stack[len(stack)-1].inElse = true
		case trimmed == "#endif":
			if len(stack) == 0 {
				return "", errors.Errorf("line %d: unexpected #endif", i+1)
			}
			stack = stack[:len(stack)-1]
		default:
			if active() {
				out = append(out, line)
			}
		}
	}

	if len(stack) != 0 {
		return "", errors.Errorf("%d unterminated #if", len(stack))
	}

	return strings.Join(out, "\n"), nil
}

// EscapeXML escapes s for use in xml text or a quoted attribute.
func EscapeXML(s string) string {
	var b bytes.Buffer
	// xml.EscapeText only errors if the writer does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// FillTokens replaces each `__KEY__` with its xml escaped value. This
// is a single pass, so a value is never itself re-substituted.
func FillTokens(text string, tokens map[string]string) string {
	return Render(text, tokens, nil)
}

// SpliceFragments replaces each `@MARKER@` with the fragment's lines,
// joined by its separator.
func SpliceFragments(text string, fragments []Fragment) string {
	return Render(text, nil, fragments)
}

// Render fills tokens and splices fragments in one pass over text.
// Inserted values and fragments are never scanned for placeholders.
func Render(text string, tokens map[string]string, fragments []Fragment) string {
	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	oldnew := make([]string, 0, 2*(len(keys)+len(fragments)))
	for _, k := range keys {
		oldnew = append(oldnew, "__"+k+"__", EscapeXML(tokens[k]))
	}
	for _, f := range fragments {
		oldnew = append(oldnew, "@"+f.Marker+"@", strings.Join(f.Lines, f.Separator))
	}

	return strings.NewReplacer(oldnew...).Replace(text)
}

var leftoverRegex = regexp.MustCompile(`__[A-Z][A-Z0-9_]*?__|@[A-Z][A-Z0-9_]*@`)

// Leftovers returns anything in text shaped like a placeholder.
func Leftovers(text string) []string {
	return leftoverRegex.FindAllString(text, -1)
}

// UnknownPlaceholders returns the placeholders in an unfilled template
// that neither tokens nor fragments provide, without duplicates.
func UnknownPlaceholders(text string, tokens map[string]string, fragments []Fragment) []string {
	markers := make(map[string]bool, len(fragments))
	for _, f := range fragments {
		markers[f.Marker] = true
	}

	var unknown []string
	seen := make(map[string]bool)
	for _, p := range Leftovers(text) {
		if seen[p] {
			continue
		}
		seen[p] = true

		if strings.HasPrefix(p, "@") {
			if markers[p[1:len(p)-1]] {
				continue
			}
		} else if _, ok := tokens[p[2:len(p)-2]]; ok {
			continue
		}
		unknown = append(unknown, p)
	}
	return unknown
}

// CheckWellFormed parses the rendered wix source, so malformed
// templates fail here rather than deep inside candle.
func CheckWellFormed(text string) error {
	m, err := mxj.NewMapXml([]byte(text))
	if err != nil {
		return errors.Wrap(err, "rendered wxs is not well formed")
	}
	if _, ok := m["Wix"]; !ok {
		var roots []string
		for k := range m {
			roots = append(roots, k)
		}
		return errors.Errorf("rendered wxs root is not Wix (have %v)", roots)
	}
	return nil
}
