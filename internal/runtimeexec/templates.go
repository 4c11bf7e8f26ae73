package runtimeexec

// The JS runner is an ES module. User source is placed inside an async
// loader function so top-level await works and main can be picked up from
// any declaration form. Stdout is redirected to stderr before user code
// runs. The saved write is used once for the result line. An exit listener
// turns a clean exit without a result, such as a main that never settles,
// into a premature_exit failure.
const jsPrelude = `const __harnessWrite = process.stdout.write.bind(process.stdout);
const __harnessExit = process.exit.bind(process);
let __harnessDone = false;

process.stdout.write = (chunk, encoding, callback) => process.stderr.write(chunk, encoding, callback);
console.log = console.error;
console.info = console.error;
console.debug = console.error;

function __harnessMessage(err) {
  if (err && typeof err.message === 'string') {
    return err.message;
  }
  return String(err);
}

function __harnessFail(kind, message) {
  __harnessDone = true;
  process.stderr.write('::harness-error::' + JSON.stringify({ kind: kind, message: String(message) }) + '\n');
  __harnessExit(1);
}

process.exit = (code) => {
  if (!__harnessDone) {
    __harnessFail('premature_exit', 'process.exit(' + (code === undefined ? '' : String(code)) + ') called before main(input) returned');
  }
  __harnessExit(code);
};

process.on('exit', (code) => {
  if (!__harnessDone && (code === 0 || code === undefined)) {
    __harnessDone = true;
    process.stderr.write('::harness-error::' + JSON.stringify({ kind: 'premature_exit', message: 'process exited before main(input) settled' }) + '\n');
    process.exitCode = 1;
  }
});

let __harnessInput;
try {
  __harnessInput = JSON.parse(process.argv[2]);
} catch (err) {
  __harnessFail('invalid_input', 'payload is not valid JSON: ' + __harnessMessage(err));
}

async function __harnessLoad() {
`

const jsEpilogue = `
  return typeof main === 'undefined' ? undefined : main;
}

(async () => {
  let entry;
  try {
    entry = await __harnessLoad();
  } catch (err) {
    console.error(err);
    return __harnessFail('user_exception', __harnessMessage(err));
  }
  if (typeof entry !== 'function') {
    return __harnessFail('entry_point_undefined', 'main(input) is not defined');
  }
  let result;
  try {
    result = await entry(__harnessInput);
  } catch (err) {
    console.error(err);
    return __harnessFail('user_exception', __harnessMessage(err));
  }
  let encoded;
  try {
    encoded = JSON.stringify(result);
  } catch (err) {
    return __harnessFail('result_not_encodable', 'main(input) returned a value that cannot be encoded as JSON: ' + __harnessMessage(err));
  }
  if (encoded === undefined) {
    return __harnessFail('result_not_encodable', 'main(input) returned a value that cannot be encoded as JSON');
  }
  __harnessDone = true;
  __harnessWrite(encoded + '\n', () => __harnessExit(0));
})();
`

// The Python runner executes user source in a fresh namespace with stdout
// redirected to stderr, then prints the JSON result on the real stdout.
// sys.exit is caught as an exception; os._exit is replaced until main returns
// so it cannot end the process with status 0 and no result.
const pythonPrelude = `import asyncio
import contextlib
import inspect
import json
import os
import sys
import traceback

`

const pythonEpilogue = `

def _harness_fail(kind, message):
    sys.stderr.write("::harness-error::" + json.dumps({"kind": kind, "message": str(message)}) + "\n")
    sys.stderr.flush()
    return 1


_harness_os_exit = os._exit


def _harness_guarded_exit(code=0):
    sys.stderr.write("::harness-error::" + json.dumps({"kind": "premature_exit", "message": "os._exit(%s) called before main(input) returned" % code}) + "\n")
    sys.stderr.flush()
    _harness_os_exit(1)


os._exit = _harness_guarded_exit


def _harness_describe(exc):
    text = str(exc)
    if text:
        return "%s: %s" % (type(exc).__name__, text)
    return type(exc).__name__


async def _harness_await(awaitable):
    return await awaitable


def _harness_main():
    try:
        payload = json.loads(sys.argv[1])
    except (IndexError, ValueError) as exc:
        return _harness_fail("invalid_input", "payload is not valid JSON: %s" % exc)

    scope = {"__name__": "__program__"}
    with contextlib.redirect_stdout(sys.stderr):
        try:
            exec(compile(USER_CODE, "<program>", "exec"), scope)
        except BaseException as exc:
            traceback.print_exc()
            return _harness_fail("user_exception", _harness_describe(exc))

        entry = scope.get("main")
        if not callable(entry):
            return _harness_fail("entry_point_undefined", "main(input) is not defined")

        try:
            result = entry(payload)
            if inspect.isawaitable(result):
                result = asyncio.run(_harness_await(result))
        except BaseException as exc:
            traceback.print_exc()
            return _harness_fail("user_exception", _harness_describe(exc))

    try:
        encoded = json.dumps(result, allow_nan=False)
    except (TypeError, ValueError) as exc:
        return _harness_fail("result_not_encodable", "main(input) returned a value that cannot be encoded as JSON: %s" % exc)

    os._exit = _harness_os_exit
    sys.stdout.write(encoded + "\n")
    sys.stdout.flush()
    return 0


sys.exit(_harness_main())
`
