package runtimeexec

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/domain"
)

func requireInterpreter(t *testing.T, family domain.Family) *ProcessExecutor {
	t.Helper()
	interps := DefaultInterpreters()
	if _, err := exec.LookPath(interps[family].Command); err != nil {
		t.Skipf("%s not available", interps[family].Command)
	}
	e, err := NewProcessExecutor(Config{
		Interpreters: interps,
		WorkDir:      t.TempDir(),
		Timeout:      20 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewProcessExecutor() err=%v", err)
	}
	return e
}

func assertJSON(t *testing.T, got json.RawMessage, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("result %s is not json: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("bad expectation %s: %v", want, err)
	}
	gb, _ := json.Marshal(g)
	wb, _ := json.Marshal(w)
	if string(gb) != string(wb) {
		t.Fatalf("result=%s, want %s", got, want)
	}
}

func assertCause(t *testing.T, err error, cause string) *domain.Error {
	t.Helper()
	var de *domain.Error
	if !errors.As(err, &de) {
		t.Fatalf("err=%v, want *domain.Error", err)
	}
	if de.Kind != domain.KindExecution || de.Cause != cause {
		t.Fatalf("Kind=%q Cause=%q, want execution_failed/%s (message %q)", de.Kind, de.Cause, cause, de.Message)
	}
	return de
}

func TestNodeExecute(t *testing.T) {
	e := requireInterpreter(t, domain.FamilyNode)
	ctx := context.Background()

	src := `export function main(input) {
  console.log("noise on stdout");
  process.stdout.write("more noise\n");
  return { sum: input.a + input.b, note: "ünï" };
}`
	got, err := e.Execute(ctx, domain.LanguageJS, src, json.RawMessage(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("Execute() err=%v", err)
	}
	assertJSON(t, got, `{"sum":3,"note":"ünï"}`)

	async := `async function main(input) {
  await new Promise((resolve) => setTimeout(resolve, 10));
  return input.map((x) => x * 2);
}`
	got, err = e.Execute(ctx, domain.LanguageJS, async, json.RawMessage(`[1,2,3]`))
	if err != nil {
		t.Fatalf("Execute(async) err=%v", err)
	}
	assertJSON(t, got, `[2,4,6]`)

	arrow := `export const main = (input) => input === null ? "nothing" : input;`
	got, err = e.Execute(ctx, domain.LanguageTS, arrow, nil)
	if err != nil {
		t.Fatalf("Execute(arrow) err=%v", err)
	}
	assertJSON(t, got, `"nothing"`)
}

func TestNodeExecuteFailures(t *testing.T) {
	e := requireInterpreter(t, domain.FamilyNode)
	ctx := context.Background()

	_, err := e.Execute(ctx, domain.LanguageJS, `const x = 1;`, json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticEntryPointUndefined)

	_, err = e.Execute(ctx, domain.LanguageJS, `function main() { throw new Error("boom"); }`, json.RawMessage(`{}`))
	de := assertCause(t, err, DiagnosticUserException)
	if !strings.Contains(de.Message, "boom") {
		t.Fatalf("Message=%q, want boom", de.Message)
	}
	if de.Engine != domain.FamilyNode {
		t.Fatalf("Engine=%q, want node", de.Engine)
	}

	_, err = e.Execute(ctx, domain.LanguageJS, `function main() { process.exit(0); }`, json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticPrematureExit)

	_, err = e.Execute(ctx, domain.LanguageJS, `function main(input) { return new Promise(() => {}); }`, json.RawMessage(`{"x":1}`))
	de = assertCause(t, err, DiagnosticPrematureExit)
	if !strings.Contains(de.Message, "settled") {
		t.Fatalf("Message=%q, want a main that never settled", de.Message)
	}

	_, err = e.Execute(ctx, domain.LanguageJS, `async function main() { await new Promise(() => {}); return 1; }`, json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticPrematureExit)

	_, err = e.Execute(ctx, domain.LanguageJS, `function main() { return undefined; }`, json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticResultNotEncodable)

	_, err = e.Execute(ctx, domain.LanguageJS, `function main( {`, json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticSyntaxError)

	_, err = e.Execute(ctx, domain.LanguageJS, "import fs from 'node:fs';\nexport function main() { return 1; }", json.RawMessage(`{}`))
	de = assertCause(t, err, DiagnosticSyntaxError)
	if !strings.HasPrefix(de.Message, "SyntaxError") {
		t.Fatalf("Message=%q, want the SyntaxError line", de.Message)
	}

	_, err = e.Execute(ctx, domain.LanguageJS, "export function helper() { return 1; }\nexport function main() { return helper(); }", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticSyntaxError)
}

func TestPythonExecute(t *testing.T) {
	e := requireInterpreter(t, domain.FamilyPython)
	ctx := context.Background()

	src := "def main(input):\n    print('noise on stdout')\n    s = '''triple'''\n    return {\"n\": input[\"n\"] + 1, \"s\": s}\n"
	got, err := e.Execute(ctx, domain.LanguagePy, src, json.RawMessage(`{"n":41}`))
	if err != nil {
		t.Fatalf("Execute() err=%v", err)
	}
	assertJSON(t, got, `{"n":42,"s":"triple"}`)

	async := "import asyncio\n\nasync def main(input):\n    await asyncio.sleep(0)\n    return [input, None]\n"
	got, err = e.Execute(ctx, domain.LanguagePy, async, json.RawMessage(`"x"`))
	if err != nil {
		t.Fatalf("Execute(async) err=%v", err)
	}
	assertJSON(t, got, `["x",null]`)
}

func TestPythonExecuteFailures(t *testing.T) {
	e := requireInterpreter(t, domain.FamilyPython)
	ctx := context.Background()

	_, err := e.Execute(ctx, domain.LanguagePy, "x = 1\n", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticEntryPointUndefined)

	_, err = e.Execute(ctx, domain.LanguagePy, "def main(input):\n    raise ValueError('boom')\n", json.RawMessage(`{}`))
	de := assertCause(t, err, DiagnosticUserException)
	if !strings.Contains(de.Message, "ValueError: boom") {
		t.Fatalf("Message=%q", de.Message)
	}
	if !strings.Contains(de.Diagnostics, "Traceback") {
		t.Fatalf("Diagnostics=%q, want traceback", de.Diagnostics)
	}

	_, err = e.Execute(ctx, domain.LanguagePy, "def main(input):\n    return float('nan')\n", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticResultNotEncodable)

	_, err = e.Execute(ctx, domain.LanguagePy, "def main(input):\n    raise SystemExit(0)\n", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticUserException)

	_, err = e.Execute(ctx, domain.LanguagePy, "import sys\n\ndef main(input):\n    sys.exit(0)\n", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticUserException)

	_, err = e.Execute(ctx, domain.LanguagePy, "import os\n\ndef main(input):\n    os._exit(0)\n", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticPrematureExit)

	_, err = e.Execute(ctx, domain.LanguagePy, "from os import _exit\n_exit(0)\n\ndef main(input):\n    return 1\n", json.RawMessage(`{}`))
	assertCause(t, err, DiagnosticPrematureExit)
}
