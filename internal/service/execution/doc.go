// Package execution coordinates program executions.
//
// Two flows produce a domain.ExecutionRecord:
//   - ExecuteByID runs a registered program with the language fixed at
//     registration. A lookup miss returns program_not_found before anything
//     is spawned.
//   - ExecuteByBlob fetches source from the content store, unwraps a
//     {"code": ...} JSON envelope when present, classifies the language and
//     runs it. The blob id becomes the record's program_id and nothing is
//     added to the registry.
//
// ExecuteAttested runs the blob flow and signs the record with the
// process_data intent.
//
// Auditing:
//   - Registrations and executions emit one audit event each when an
//     appender is configured.
//   - Audit failures are logged and never fail the request.
package execution
