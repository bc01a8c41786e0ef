// Package core holds what every workspace operation shares: the fault
// taxonomy and the operation limiter.
//
// It sits below the transports. File operations, CSV ingestion and the MCP
// dispatcher all return errors wrapping the sentinels declared here, and the
// dispatcher renders them with [MapError].
//
// # Operation Limiter
//
// Documents are updated by full read-modify-write, so concurrent callers are
// admitted through [OpLimiter]. The default capacity of one keeps the
// single-caller model intact under the HTTP transport:
//
//	limiter := core.NewOpLimiter(core.DefaultMaxConcurrentOps, core.DefaultMaxWaitTime)
//	if err := limiter.Acquire(ctx); err != nil {
//	    return err // ErrBusy after the wait time
//	}
//	defer limiter.Release()
//
// # Fault Codes Reference
//
// Each fault surfaced to the agent carries a code so a reported failure can
// be traced back to the log entry that produced it.
//
// # Path Faults (PATH001-PATH099)
//
//	PATH001 - Containment: the path resolves outside the workspace root
//	          Action: Use a path relative to the workspace root
//	          Sentinel: ErrContainment
//
// # Filesystem Faults (FS001-FS099)
//
//	FS001 - Not found: the file or directory does not exist
//	        Action: List the parent directory to check the name
//	        Sentinel: ErrNotFound
//
//	FS002 - Already exists: the target file already exists
//	        Action: Use update_code to replace its content
//	        Sentinel: ErrAlreadyExists
//
//	FS003 - Not a directory: the path is not a directory
//	        Action: Pass a directory path
//	        Sentinel: ErrNotADirectory
//
// # Document Faults (DOC001-DOC099)
//
//	DOC001 - Malformed document: a stored JSON document does not parse
//	         Action: Repair or remove the document
//	         Sentinel: ErrMalformedDocument
//
// # Ingestion Faults (CSV001-CSV099)
//
//	CSV001 - Unsupported encoding: no supported encoding decodes the file
//	         Action: Save the file as UTF-8 or Shift-JIS
//	         Sentinel: ErrUnsupportedEncoding
//
//	CSV002 - File too large: the CSV exceeds the configured size limit
//	         Action: Split the file into smaller exports
//	         Sentinel: ErrFileTooLarge
//
// # Argument Faults (ARG001-ARG099)
//
//	ARG001 - Missing argument: a required argument was not supplied
//	         Action: Supply exactly one of the accepted argument names
//	         Sentinel: ErrMissingArgument
//
// # Operation Faults (OPS001-OPS099)
//
//	OPS001 - Busy: another operation holds the workspace
//	         Action: Retry after the current operation completes
//	         Sentinel: ErrBusy
//
// # Default (ERR000)
//
// Fallback when neither a sentinel nor a pattern matches. Check the error
// log document for the original text.
package core
