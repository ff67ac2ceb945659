// Package presets provides example expressions and loads user preset files.
package presets

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/verte-zerg/tuigrad/internal/expr"
)

// Builtin lists the example functions offered when no preset file exists.
var Builtin = []string{
	"x^2",
	"(x-2)^2",
	"x^4 - 3*x^2 + x",
	"sin(x) + 0.1*x^2",
	"x^2/10 + sin(2*x)",
	"abs(x - 1)",
	"exp(x/4) - x",
	"1/x",
}

// ErrEmpty is returned for a preset file with no expressions.
var ErrEmpty = errors.New("preset file is empty")

// Load reads one expression per line. Blank lines and lines starting with
// '#' are skipped; every expression must compile.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only preset file.
			_ = cerr
		}
	}()

	var list []string
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := expr.Compile(line); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return list, nil
}

// LoadOrBuiltin loads path, falling back to Builtin when the file does not
// exist. fromFile reports which source was used.
func LoadOrBuiltin(path string) (list []string, fromFile bool, err error) {
	if path == "" {
		return append([]string(nil), Builtin...), false, nil
	}
	list, err = Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return append([]string(nil), Builtin...), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// Cycle steps through a preset list, wrapping at the end.
type Cycle struct {
	list []string
	next int
}

// NewCycle returns a cycle over list.
func NewCycle(list []string) *Cycle {
	return &Cycle{list: list}
}

// Next returns the next preset, or "" for an empty list.
func (c *Cycle) Next() string {
	if len(c.list) == 0 {
		return ""
	}
	v := c.list[c.next%len(c.list)]
	c.next = (c.next + 1) % len(c.list)
	return v
}

// Len returns the number of presets.
func (c *Cycle) Len() int {
	return len(c.list)
}
