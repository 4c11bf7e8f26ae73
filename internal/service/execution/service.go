package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nereus-labs/nautilus-go/internal/attest"
	"github.com/nereus-labs/nautilus-go/internal/contenthash"
	"github.com/nereus-labs/nautilus-go/internal/contentstore"
	"github.com/nereus-labs/nautilus-go/internal/domain"
	"github.com/nereus-labs/nautilus-go/internal/platform/auditlog"
	"github.com/nereus-labs/nautilus-go/internal/runtimeexec"
)

// Runner executes source in a fresh interpreter and returns the single JSON
// value it produced.
type Runner interface {
	Execute(ctx context.Context, lang domain.Language, source string, payload json.RawMessage) (json.RawMessage, error)
}

type ProgramStore interface {
	Register(id string, lang domain.Language, source string) (domain.Program, error)
	Lookup(id string) (domain.Program, error)
}

type AuditAppender interface {
	Append(ctx context.Context, event auditlog.Event) error
}

type Options struct {
	Blobs  contentstore.BlobReader
	Signer attest.Signer
	Audit  AuditAppender
	Logger *slog.Logger
	Now    func() time.Time
}

type Service struct {
	runner   Runner
	programs ProgramStore
	blobs    contentstore.BlobReader
	signer   attest.Signer
	audit    AuditAppender
	logger   *slog.Logger
	now      func() time.Time
}

func New(runner Runner, programs ProgramStore, opts Options) (*Service, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if programs == nil {
		return nil, errors.New("program store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		runner:   runner,
		programs: programs,
		blobs:    opts.Blobs,
		signer:   opts.Signer,
		audit:    opts.Audit,
		logger:   logger,
		now:      now,
	}, nil
}

type RegisterRequest struct {
	ID string
	// Language is a wire tag such as "js" or "python". Blank means the
	// source is classified.
	Language string
	Code     string
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (domain.Program, error) {
	if strings.TrimSpace(req.Code) == "" {
		return domain.Program{}, domain.Errorf(domain.KindInvalidRequest, "code is required")
	}
	var lang domain.Language
	if strings.TrimSpace(req.Language) == "" {
		lang = runtimeexec.Classify(req.Code)
	} else {
		parsed, err := domain.ParseLanguage(req.Language)
		if err != nil {
			return domain.Program{}, domain.NewError(domain.KindInvalidRequest, err.Error(), nil)
		}
		lang = parsed
	}

	program, err := s.programs.Register(req.ID, lang, req.Code)
	if err != nil {
		return domain.Program{}, err
	}
	s.logger.Info("program registered", "program_id", program.ID, "language", string(program.Language), "code_hash", program.CodeHash)
	s.appendAudit(ctx, auditlog.Event{
		OccurredAt: program.RegisteredAt,
		Action:     auditlog.ActionProgramRegistered,
		ProgramID:  program.ID,
		CodeHash:   program.CodeHash,
		Payload: map[string]any{
			"language": string(program.Language),
		},
	})
	return program, nil
}

// Program returns a registered program.
func (s *Service) Program(id string) (domain.Program, error) {
	return s.programs.Lookup(id)
}

func (s *Service) ExecuteByID(ctx context.Context, id string, payload json.RawMessage) (domain.ExecutionRecord, error) {
	if strings.TrimSpace(id) == "" {
		return domain.ExecutionRecord{}, domain.Errorf(domain.KindInvalidRequest, "id is required")
	}
	program, err := s.programs.Lookup(id)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	return s.execute(ctx, program.ID, program.Language, program.Source, payload)
}

func (s *Service) ExecuteByBlob(ctx context.Context, blobID string, payload json.RawMessage) (domain.ExecutionRecord, error) {
	blobID = strings.TrimSpace(blobID)
	if blobID == "" {
		return domain.ExecutionRecord{}, domain.Errorf(domain.KindInvalidRequest, "blob_id is required")
	}
	if s.blobs == nil {
		return domain.ExecutionRecord{}, domain.Errorf(domain.KindUpstreamFetch, "no content store configured")
	}
	blob, err := s.blobs.ReadBlob(ctx, blobID)
	if err != nil {
		return domain.ExecutionRecord{}, domain.NewError(domain.KindUpstreamFetch, "read blob "+blobID, err)
	}
	source, err := ExtractSource(blob)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	return s.execute(ctx, blobID, runtimeexec.Classify(source), source, payload)
}

// ExecuteAttested runs the blob flow and signs the record for the
// process_data intent at the current time.
func (s *Service) ExecuteAttested(ctx context.Context, blobID string, payload json.RawMessage) (attest.SignedEnvelope, error) {
	if s.signer == nil {
		return attest.SignedEnvelope{}, errors.New("no signer configured")
	}
	record, err := s.ExecuteByBlob(ctx, blobID, payload)
	if err != nil {
		return attest.SignedEnvelope{}, err
	}
	envelope, err := s.signer.Sign(record, s.now().UnixMilli(), attest.IntentProcessData)
	if err != nil {
		return attest.SignedEnvelope{}, err
	}
	return envelope, nil
}

// ExtractSource decodes blob bytes into program source. Text whose first
// non-space character is '{' must be a JSON object with a string "code"
// field; anything else is taken verbatim.
func ExtractSource(blob []byte) (string, error) {
	if !utf8.Valid(blob) {
		return "", domain.Errorf(domain.KindInvalidEncoding, "blob is not valid utf-8")
	}
	text := string(blob)
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return text, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
		return "", domain.NewError(domain.KindInvalidJSON, "blob starts with '{' but is not a json object", err)
	}
	raw, ok := wrapped["code"]
	if !ok {
		return "", domain.Errorf(domain.KindMissingCodeField, "json blob has no code field")
	}
	var code *string
	if err := json.Unmarshal(raw, &code); err != nil || code == nil {
		return "", domain.Errorf(domain.KindMissingCodeField, "json blob code field is not a string")
	}
	return *code, nil
}

func (s *Service) execute(ctx context.Context, programID string, lang domain.Language, source string, payload json.RawMessage) (domain.ExecutionRecord, error) {
	payload = normalizePayload(payload)
	inputHash, err := contenthash.JSON(payload)
	if err != nil {
		return domain.ExecutionRecord{}, domain.NewError(domain.KindInvalidRequest, "payload is not valid json", err)
	}
	codeHash := contenthash.Text(source)
	startedAt := s.now()

	output, err := s.runner.Execute(ctx, lang, source, payload)
	duration := s.now().Sub(startedAt)
	if err != nil {
		s.logger.Warn("program execution failed",
			"program_id", programID,
			"language", string(lang),
			"kind", string(domain.KindOf(err)),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		s.appendAudit(ctx, auditlog.Event{
			OccurredAt: startedAt,
			Action:     auditlog.ActionProgramExecutionFailed,
			ProgramID:  programID,
			CodeHash:   codeHash,
			Payload: map[string]any{
				"language":    string(lang),
				"input_hash":  inputHash,
				"kind":        string(domain.KindOf(err)),
				"duration_ms": duration.Milliseconds(),
			},
		})
		return domain.ExecutionRecord{}, err
	}

	record := domain.ExecutionRecord{
		ProgramID:   programID,
		CodeHash:    codeHash,
		InputHash:   inputHash,
		Output:      output,
		TimestampMs: startedAt.UnixMilli(),
	}
	outputHash, _ := contenthash.JSON(output)
	s.logger.Info("program executed",
		"program_id", programID,
		"language", string(lang),
		"duration_ms", duration.Milliseconds(),
	)
	s.appendAudit(ctx, auditlog.Event{
		OccurredAt: startedAt,
		Action:     auditlog.ActionProgramExecuted,
		ProgramID:  programID,
		CodeHash:   codeHash,
		Payload: map[string]any{
			"language":     string(lang),
			"input_hash":   inputHash,
			"output_hash":  outputHash,
			"timestamp_ms": record.TimestampMs,
			"duration_ms":  duration.Milliseconds(),
		},
	})
	return record, nil
}

func (s *Service) appendAudit(ctx context.Context, event auditlog.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", "action", event.Action, "program_id", event.ProgramID, "error", err)
	}
}

func normalizePayload(payload json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(trimmed)
}
