// Package command drives a workspace from text steps.
//
// A step is an operation name followed by arguments, either typed at the
// REPL or listed in a YAML script:
//
//	steps:
//	  - text "hello world" x=10 y=20
//	  - op: select
//	    args: [hello]
//
// Arguments of the form key=value are named parameters, the rest are
// positional.
package command

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyStep is returned for a blank line or a step without an op.
	ErrEmptyStep = errors.New("empty step")

	// ErrUnterminatedQuote is returned when a quote is never closed.
	ErrUnterminatedQuote = errors.New("unterminated quote")
)

// Step is one operation and its arguments.
type Step struct {
	Op   string   `yaml:"op"`
	Args []string `yaml:"args,omitempty"`
}

// String renders the step back into a line.
func (s Step) String() string {
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, s.Op)
	for _, a := range s.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Positional returns the arguments that are not key=value pairs.
func (s Step) Positional() []string {
	var out []string
	for _, a := range s.Args {
		if _, _, ok := param(a); !ok {
			out = append(out, a)
		}
	}
	return out
}

// Param returns the value of the named parameter key, or def.
func (s Step) Param(key, def string) string {
	for _, a := range s.Args {
		if k, v, ok := param(a); ok && k == key {
			return v
		}
	}
	return def
}

func param(arg string) (string, string, bool) {
	k, v, ok := strings.Cut(arg, "=")
	if !ok || k == "" || strings.ContainsAny(k, " /:") {
		return "", "", false
	}
	return k, v, true
}

// ParseLine splits a line into a step. Single and double quotes group words
// and a backslash escapes the next character. Lines starting with # are
// comments and yield ErrEmptyStep.
func ParseLine(line string) (Step, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Step{}, ErrEmptyStep
	}

	var (
		words   []string
		cur     strings.Builder
		quote   rune
		escaped bool
		inWord  bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 || escaped {
		return Step{}, ErrUnterminatedQuote
	}
	if inWord {
		words = append(words, cur.String())
	}

	return Step{Op: strings.ToLower(words[0]), Args: words[1:]}, nil
}

// UnmarshalYAML accepts a step written as a line or as an op/args mapping.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		step, err := ParseLine(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*s = step
		return nil
	}

	var raw struct {
		Op   string   `yaml:"op"`
		Args []string `yaml:"args"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Op == "" {
		return fmt.Errorf("line %d: %w", node.Line, ErrEmptyStep)
	}
	*s = Step{Op: strings.ToLower(raw.Op), Args: raw.Args}
	return nil
}

// Script is a YAML list of steps.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// ParseScript decodes a script. The document may be a mapping with a steps
// key or a bare sequence of steps.
func ParseScript(data []byte) ([]Step, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var steps []Step
		if err := root.Decode(&steps); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
		return steps, nil
	}

	var script Script
	if err := root.Decode(&script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return script.Steps, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	steps, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return steps, nil
}
