package loader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kiyonya/miocore/internal/maven"
)

var tokenPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// TemplateEnv is the installation state the template variables refer to.
type TemplateEnv struct {
	Side             string
	Libraries        string // library root
	WorkDir          string // unpacked installer
	InstallerJar     string
	Root             string // installation root
	MinecraftJar     string
	MinecraftVersion string
}

// Template resolves profile data values and processor arguments.
type Template struct {
	loader    string
	libraries string
	vars      map[string]string
}

// NewTemplate builds the variable table for a profile and side.
func NewTemplate(loader string, p *Profile, env TemplateEnv) (*Template, error) {
	t := &Template{loader: loader, libraries: env.Libraries, vars: make(map[string]string, len(p.Data)+6)}
	for name, v := range p.Data {
		value, err := t.dataValue(v.For(env.Side), env.WorkDir)
		if err != nil {
			return nil, &UnresolvedProfileError{Loader: loader, Field: "data." + name, Err: err}
		}
		t.vars[name] = value
	}

	t.vars["SIDE"] = env.Side
	t.vars["MINECRAFT_JAR"] = env.MinecraftJar
	t.vars["MINECRAFT_VERSION"] = env.MinecraftVersion
	if env.Side == "server" {
		t.vars["ROOT"] = env.Root
		t.vars["LIBRARY_DIR"] = env.Libraries
		t.vars["INSTALLER"] = env.InstallerJar
	}
	return t, nil
}

// Var returns a resolved variable.
func (t *Template) Var(name string) (string, bool) {
	v, ok := t.vars[name]
	return v, ok
}

func (t *Template) dataValue(raw, workDir string) (string, error) {
	switch {
	case maven.IsBracketed(raw):
		return maven.LocalPath(t.libraries, raw)
	case isQuoted(raw):
		return raw[1 : len(raw)-1], nil
	case strings.HasPrefix(raw, "/"):
		// Archive-relative, e.g. BINPATCH.
		return filepath.Join(workDir, filepath.FromSlash(raw[1:])), nil
	default:
		return raw, nil
	}
}

// Expand resolves one argument: a bracketed coordinate becomes a library
// path, a quoted literal loses its quotes, and {NAME} tokens are replaced.
func (t *Template) Expand(arg string) (string, error) {
	if maven.IsBracketed(arg) {
		path, err := maven.LocalPath(t.libraries, arg)
		if err != nil {
			return "", &UnresolvedProfileError{Loader: t.loader, Field: arg, Err: err}
		}
		return path, nil
	}
	if isQuoted(arg) {
		return arg[1 : len(arg)-1], nil
	}

	var missing string
	out := tokenPattern.ReplaceAllStringFunc(arg, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := t.vars[name]; ok {
			return v
		}
		if missing == "" {
			missing = m
		}
		return m
	})
	if missing != "" {
		return "", &UnresolvedProfileError{Loader: t.loader, Field: missing}
	}
	return out, nil
}

// ExpandAll expands every argument.
func (t *Template) ExpandAll(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		v, err := t.Expand(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}
