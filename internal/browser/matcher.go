package browser

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Matcher evaluates adapter match expressions. Expressions see three string
// variables: host (lowercased, no port), url and path.
type Matcher struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewMatcher creates a matcher with an empty program cache
func NewMatcher() (*Matcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("host", cel.StringType),
		cel.Variable("url", cel.StringType),
		cel.Variable("path", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Matcher{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile checks and caches an expression.
func (m *Matcher) Compile(expr string) error {
	_, err := m.program(expr)
	return err
}

// Match evaluates expr against jobURL.
func (m *Matcher) Match(expr, jobURL string) (bool, error) {
	prg, err := m.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(urlVars(jobURL))
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

// CacheSize returns the number of compiled expressions
func (m *Matcher) CacheSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

func (m *Matcher) program(expr string) (cel.Program, error) {
	m.mu.RLock()
	prg, ok := m.cache[expr]
	m.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error in %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("CEL expression %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := m.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	m.mu.Lock()
	m.cache[expr] = prg
	m.mu.Unlock()
	return prg, nil
}

func urlVars(jobURL string) map[string]any {
	host, path := "", ""
	if u, err := url.Parse(jobURL); err == nil {
		host = strings.ToLower(u.Hostname())
		path = u.Path
	}
	return map[string]any{"host": host, "url": jobURL, "path": path}
}

// HostOf returns the lowercased host of a URL, or "".
func HostOf(jobURL string) string {
	return urlVars(jobURL)["host"].(string)
}
