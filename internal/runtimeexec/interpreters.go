package runtimeexec

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nereus-labs/nautilus-go/internal/domain"
)

const InterpretersSchemaV1 = "nautilus.interpreters.v1"

// Interpreter describes how to launch one interpreter family.
type Interpreter struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	// InlineFlag precedes an inline script, "-c" for CPython.
	InlineFlag string            `yaml:"inline_flag,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
}

// Interpreters maps a family to its launcher.
type Interpreters map[domain.Family]Interpreter

type interpretersFile struct {
	Schema       string                 `yaml:"schema"`
	Interpreters map[string]Interpreter `yaml:"interpreters"`
}

func DefaultInterpreters() Interpreters {
	return Interpreters{
		domain.FamilyNode: {
			Command: "node",
		},
		domain.FamilyPython: {
			Command:    "python3",
			Args:       []string{"-u"},
			InlineFlag: "-c",
			Env:        map[string]string{"PYTHONDONTWRITEBYTECODE": "1", "PYTHONIOENCODING": "utf-8"},
		},
	}
}

// ParseInterpreters decodes a YAML interpreter table and merges it over the
// defaults. Families absent from the file keep their default launcher.
func ParseInterpreters(input []byte) (Interpreters, error) {
	var file interpretersFile
	if err := yaml.Unmarshal(input, &file); err != nil {
		return nil, fmt.Errorf("decode interpreters: %w", err)
	}
	if strings.TrimSpace(file.Schema) != InterpretersSchemaV1 {
		return nil, fmt.Errorf("interpreters.schema must be %q", InterpretersSchemaV1)
	}
	if len(file.Interpreters) == 0 {
		return nil, errors.New("interpreters.interpreters must be non-empty")
	}

	out := DefaultInterpreters()
	names := make([]string, 0, len(file.Interpreters))
	for name := range file.Interpreters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		family := domain.Family(strings.ToLower(strings.TrimSpace(name)))
		if family != domain.FamilyNode && family != domain.FamilyPython {
			return nil, fmt.Errorf("interpreters.interpreters.%s: unsupported family", name)
		}
		out[family] = file.Interpreters[name]
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadInterpreters reads a YAML interpreter table from path.
func LoadInterpreters(path string) (Interpreters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read interpreters: %w", err)
	}
	return ParseInterpreters(data)
}

func (in Interpreters) Validate() error {
	for _, family := range []domain.Family{domain.FamilyNode, domain.FamilyPython} {
		interp, ok := in[family]
		if !ok {
			return fmt.Errorf("interpreters.%s is required", family)
		}
		if strings.TrimSpace(interp.Command) == "" {
			return fmt.Errorf("interpreters.%s.command is required", family)
		}
		for key := range interp.Env {
			if strings.TrimSpace(key) == "" || strings.Contains(key, "=") {
				return fmt.Errorf("interpreters.%s.env has invalid key %q", family, key)
			}
		}
	}
	return nil
}

// WithCommand returns a copy of in where family launches command. A blank
// command leaves the table unchanged.
func (in Interpreters) WithCommand(family domain.Family, command string) Interpreters {
	command = strings.TrimSpace(command)
	if command == "" {
		return in
	}
	out := make(Interpreters, len(in))
	for k, v := range in {
		out[k] = v
	}
	interp := out[family]
	interp.Command = command
	out[family] = interp
	return out
}
