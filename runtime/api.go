package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/attest"
	"github.com/nereus-labs/nautilus-go/internal/domain"
	"github.com/nereus-labs/nautilus-go/internal/platform/httpserver"
	"github.com/nereus-labs/nautilus-go/internal/service/execution"
)

type publicKeyer interface {
	PublicKeyHex() string
	Ephemeral() bool
}

type runtimeAPI struct {
	logger          *slog.Logger
	svc             *execution.Service
	keys            publicKeyer
	maxRequestBytes int64
}

func newRuntimeAPI(logger *slog.Logger, svc *execution.Service, keys publicKeyer, maxRequestBytes int64) *runtimeAPI {
	if maxRequestBytes <= 0 {
		maxRequestBytes = 4 << 20
	}
	return &runtimeAPI{
		logger:          logger,
		svc:             svc,
		keys:            keys,
		maxRequestBytes: maxRequestBytes,
	}
}

func (api *runtimeAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /register_program", api.handleRegisterProgram)
	mux.HandleFunc("POST /execute_program", api.handleExecuteProgram)
	mux.HandleFunc("POST /execute_program_from_blob", api.handleExecuteFromBlob)
	mux.HandleFunc("POST /process_data", api.handleProcessData)

	mux.HandleFunc("GET /programs/{program_id}", api.handleGetProgram)
	mux.HandleFunc("GET /public_key", api.handlePublicKey)
}

type registerProgramRequest struct {
	ID       string `json:"id,omitempty"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

type registerProgramResponse struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	CodeHash string `json:"code_hash"`
}

type executeProgramRequest struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type executeFromBlobRequest struct {
	BlobID  string          `json:"blob_id"`
	Payload json.RawMessage `json:"payload"`
}

type processDataRequest struct {
	Payload executeFromBlobRequest `json:"payload"`
}

type executionResponse struct {
	Response domain.ExecutionRecord `json:"response"`
}

type programSummary struct {
	ID           string    `json:"id"`
	Language     string    `json:"language"`
	CodeHash     string    `json:"code_hash"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (api *runtimeAPI) handleRegisterProgram(w http.ResponseWriter, r *http.Request) {
	var req registerProgramRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, string(domain.KindInvalidRequest), err.Error())
		return
	}
	program, err := api.svc.Register(r.Context(), execution.RegisterRequest{
		ID:       req.ID,
		Language: req.Language,
		Code:     req.Code,
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, registerProgramResponse{
		ID:       program.ID,
		Language: string(program.Language),
		CodeHash: program.CodeHash,
	})
}

func (api *runtimeAPI) handleExecuteProgram(w http.ResponseWriter, r *http.Request) {
	var req executeProgramRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, string(domain.KindInvalidRequest), err.Error())
		return
	}
	record, err := api.svc.ExecuteByID(r.Context(), req.ID, req.Payload)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, executionResponse{Response: record})
}

func (api *runtimeAPI) handleExecuteFromBlob(w http.ResponseWriter, r *http.Request) {
	var req executeFromBlobRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, string(domain.KindInvalidRequest), err.Error())
		return
	}
	record, err := api.svc.ExecuteByBlob(r.Context(), req.BlobID, req.Payload)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, executionResponse{Response: record})
}

func (api *runtimeAPI) handleProcessData(w http.ResponseWriter, r *http.Request) {
	var req processDataRequest
	if err := api.decodeJSON(w, r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, string(domain.KindInvalidRequest), err.Error())
		return
	}
	envelope, err := api.svc.ExecuteAttested(r.Context(), req.Payload.BlobID, req.Payload.Payload)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, envelope)
}

func (api *runtimeAPI) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	program, err := api.svc.Program(r.PathValue("program_id"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, programSummary{
		ID:           program.ID,
		Language:     string(program.Language),
		CodeHash:     program.CodeHash,
		RegisteredAt: program.RegisteredAt,
	})
}

func (api *runtimeAPI) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	if api.keys == nil {
		api.writeError(w, r, http.StatusServiceUnavailable, "signer_unavailable", "no signer configured")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"public_key": api.keys.PublicKeyHex(),
		"algorithm":  "ed25519",
		"intent":     attest.IntentProcessData.String(),
		"ephemeral":  api.keys.Ephemeral(),
	})
}

func (api *runtimeAPI) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, api.maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single json object")
	}
	return nil
}

func (api *runtimeAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	httpserver.WriteDomainError(w, r, api.logger, err)
}

func (api *runtimeAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	httpserver.WriteJSON(w, status, body)
}

func (api *runtimeAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	httpserver.WriteError(w, r, status, code, message)
}
