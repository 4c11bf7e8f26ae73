//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nereus-labs/nautilus-go/internal/attest"
	"github.com/nereus-labs/nautilus-go/internal/contenthash"
	"github.com/nereus-labs/nautilus-go/internal/domain"
)

func TestRuntime_EndToEnd(t *testing.T) {
	for _, bin := range []string{"node", "python3"} {
		if !commandExists(bin) {
			t.Skipf("%s not found; the runtime is not ready without both interpreters", bin)
		}
	}
	infra := ensureInfra(t)

	bin := filepath.Join(t.TempDir(), "runtime.bin")
	build := exec.Command("go", "build", "-o", bin, "./runtime")
	build.Dir = repoRoot(t)
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build ./runtime: %v\n%s", err, string(out))
	}

	addr := freeAddr(t)
	base := "http://" + addr

	var out bytes.Buffer
	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"RUNTIME_HTTP_ADDR="+addr,
		"RUNTIME_AUDIT_ENABLED=true",
		"DATABASE_URL="+infra.databaseURL,
		"RUNTIME_CONTENT_STORE=minio",
		"RUNTIME_MINIO_ENDPOINT="+infra.minioEndpoint,
		"RUNTIME_MINIO_ACCESS_KEY="+infra.minioAccessKey,
		"RUNTIME_MINIO_SECRET_KEY="+infra.minioSecretKey,
		"RUNTIME_MINIO_USE_SSL=false",
		"RUNTIME_MINIO_BUCKET_PROGRAMS="+infra.minioBucket,
		"RUNTIME_EXECUTION_TIMEOUT=10s",
	)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Start(); err != nil {
		t.Fatalf("start runtime: %v", err)
	}
	t.Cleanup(func() { stopProcess(t, cmd, &out) })

	waitHTTP200(t, base+"/readyz", &out)
	waitHTTP200(t, base+"/healthz", &out)

	pyCode := "def main(input):\n    print('log line')\n    return {'total': sum(input['values'])}\n"
	var registered struct {
		ID       string `json:"id"`
		CodeHash string `json:"code_hash"`
	}
	postJSON(t, base+"/register_program", map[string]any{"id": "sum-py", "language": "py", "code": pyCode}, http.StatusOK, &registered)
	if registered.CodeHash != contenthash.Text(pyCode) {
		t.Fatalf("code_hash=%q, want %q", registered.CodeHash, contenthash.Text(pyCode))
	}

	var executed struct {
		Response domain.ExecutionRecord `json:"response"`
	}
	postJSON(t, base+"/execute_program", map[string]any{"id": "sum-py", "payload": map[string]any{"values": []int{1, 2, 3}}}, http.StatusOK, &executed)
	if string(executed.Response.Output) != `{"total":6}` {
		t.Fatalf("output=%s, want {\"total\":6}", executed.Response.Output)
	}

	jsCode := `export default async function main(input) { console.log("noise"); return { echoed: input }; }`
	blob, _ := json.Marshal(map[string]string{"code": jsCode})
	putBlob(t, infra, "echo-js", blob)

	var fromBlob struct {
		Response domain.ExecutionRecord `json:"response"`
	}
	postJSON(t, base+"/execute_program_from_blob", map[string]any{"blob_id": "echo-js", "payload": "hi"}, http.StatusOK, &fromBlob)
	if string(fromBlob.Response.Output) != `{"echoed":"hi"}` {
		t.Fatalf("blob output=%s, want {\"echoed\":\"hi\"}", fromBlob.Response.Output)
	}
	if fromBlob.Response.CodeHash != contenthash.Text(jsCode) {
		t.Fatalf("blob code_hash=%q, want %q", fromBlob.Response.CodeHash, contenthash.Text(jsCode))
	}

	postJSON(t, base+"/execute_program_from_blob", map[string]any{"blob_id": "missing"}, http.StatusBadGateway, nil)

	var keyResp struct {
		PublicKey string `json:"public_key"`
	}
	getJSON(t, base+"/public_key", &keyResp)
	pub, err := hex.DecodeString(keyResp.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		t.Fatalf("public_key=%q is not an ed25519 key", keyResp.PublicKey)
	}

	raw := postJSON(t, base+"/process_data", map[string]any{"payload": map[string]any{"blob_id": "echo-js", "payload": 7}}, http.StatusOK, nil)
	envelope, err := attest.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if err := attest.Verify(ed25519.PublicKey(pub), envelope); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	db, err := sql.Open("pgx", infra.databaseURL)
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var executedCount int
	row := db.QueryRow(`SELECT COUNT(*) FROM execution_events WHERE action = 'program.executed'`)
	if err := row.Scan(&executedCount); err != nil {
		t.Fatalf("count audit events: %v", err)
	}
	if executedCount < 3 {
		t.Fatalf("executed events=%d, want >= 3\n%s", executedCount, out.String())
	}
}

func postJSON(t *testing.T, url string, body any, wantStatus int, into any) []byte {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status=%d, want %d: %s", url, resp.StatusCode, wantStatus, strings.TrimSpace(string(raw)))
	}
	if into != nil {
		if err := json.Unmarshal(raw, into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return raw
}

func getJSON(t *testing.T, url string, into any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status=%d, want 200", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
