package runtimeexec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nereus-labs/nautilus-go/internal/domain"
)

// Harness diagnostic kinds written by the runner scripts.
const (
	DiagnosticEntryPointUndefined = "entry_point_undefined"
	DiagnosticUserException       = "user_exception"
	DiagnosticResultNotEncodable  = "result_not_encodable"
	DiagnosticInvalidInput        = "invalid_input"
	DiagnosticPrematureExit       = "premature_exit"
	// DiagnosticSyntaxError is inferred from interpreter stderr. Node rejects
	// a module that does not parse before the harness runs, so the runner
	// cannot report it itself.
	DiagnosticSyntaxError = "syntax_error"
)

const harnessErrorPrefix = "::harness-error::"

// maxInlineScript keeps inline scripts well below the kernel's per-argument
// size limit. Larger Python harnesses are written to a file instead.
const maxInlineScript = 64 << 10

// Harness is a runnable script that wraps user source.
type Harness struct {
	Language domain.Language
	Script   string
	// Inline scripts are passed to the interpreter on the command line
	// instead of being written to a file.
	Inline bool
	// Extension is the file extension used when the script is written out.
	Extension string
}

// BuildHarness wraps source for lang. The produced script reads the payload
// from the first argument, calls main(input), awaits a returned promise or
// coroutine and writes the JSON encoding of the result as the only line on
// stdout.
func BuildHarness(lang domain.Language, source string) (Harness, error) {
	switch lang.Family() {
	case domain.FamilyNode:
		return Harness{
			Language:  lang,
			Script:    jsPrelude + normalizeJS(source) + jsEpilogue,
			Extension: ".mjs",
		}, nil
	case domain.FamilyPython:
		literal, err := pythonStringLiteral(source)
		if err != nil {
			return Harness{}, err
		}
		script := pythonPrelude + "USER_CODE = " + literal + "\n" + pythonEpilogue
		return Harness{
			Language:  lang,
			Script:    script,
			Inline:    len(script) <= maxInlineScript,
			Extension: ".py",
		}, nil
	default:
		return Harness{}, domain.Errorf(domain.KindInvalidRequest, "unsupported language %q", lang)
	}
}

var jsExportReplacer = strings.NewReplacer(
	"export default async function main", "async function main",
	"export default function main", "function main",
	"export async function main", "async function main",
	"export function main", "function main",
	"export const main", "const main",
	"export let main", "let main",
)

// normalizeJS rewrites module-level exports of main into plain declarations so
// the source can be placed inside a function body.
func normalizeJS(source string) string {
	return jsExportReplacer.Replace(source)
}

// pythonStringLiteral encodes source as a JSON string, which is also a valid
// Python string literal. No triple-quote escaping is needed.
func pythonStringLiteral(source string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(source); err != nil {
		return "", fmt.Errorf("encode python source: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// HarnessDiagnostic is a structured failure reported by a runner script.
type HarnessDiagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ParseDiagnostic returns the last harness diagnostic found in stderr.
// The second result is false when none was written.
func ParseDiagnostic(stderr []byte) (HarnessDiagnostic, bool) {
	var (
		found HarnessDiagnostic
		ok    bool
	)
	for _, line := range bytes.Split(stderr, []byte("\n")) {
		line = bytes.TrimSpace(line)
		rest, has := bytes.CutPrefix(line, []byte(harnessErrorPrefix))
		if !has {
			continue
		}
		var d HarnessDiagnostic
		if err := json.Unmarshal(rest, &d); err != nil || strings.TrimSpace(d.Kind) == "" {
			continue
		}
		found, ok = d, true
	}
	return found, ok
}

// syntaxErrorLine returns the interpreter's SyntaxError line from stderr.
func syntaxErrorLine(stderr []byte) (string, bool) {
	for _, line := range bytes.Split(stderr, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if bytes.HasPrefix(line, []byte("SyntaxError")) {
			return string(line), true
		}
	}
	return "", false
}

// stripDiagnostics drops harness protocol lines from stderr, leaving what the
// program and interpreter printed.
func stripDiagnostics(stderr []byte) string {
	lines := bytes.Split(stderr, []byte("\n"))
	kept := lines[:0]
	for _, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte(harnessErrorPrefix)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(string(bytes.Join(kept, []byte("\n"))))
}

// DecodeOutput parses interpreter stdout as exactly one JSON value and returns
// it in compact form.
func DecodeOutput(stdout []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, domain.Errorf(domain.KindOutputDecode, "interpreter wrote no result")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.NewError(domain.KindOutputDecode, "stdout is not a json value", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, domain.Errorf(domain.KindOutputDecode, "stdout holds more than one json value")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, domain.NewError(domain.KindOutputDecode, "stdout is not a json value", err)
	}
	return json.RawMessage(compact.Bytes()), nil
}
