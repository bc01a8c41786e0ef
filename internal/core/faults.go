package core

// faults.go maps errors to agent-facing messages. See the package
// documentation for the code reference.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContainment         = errors.New("path escapes workspace root")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotADirectory       = errors.New("not a directory")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrFileTooLarge        = errors.New("file too large")
	ErrMissingArgument     = errors.New("missing argument")
	ErrBusy                = errors.New("too many concurrent operations")
)

// UserMessage provides agent-facing fault information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Fault code for log correlation
}

type sentinelMapping struct {
	err error
	msg UserMessage
}

// sentinelMappings is checked with errors.Is before any substring pattern.
var sentinelMappings = []sentinelMapping{
	{
		err: ErrContainment,
		msg: UserMessage{
			Message: "Path resolves outside the workspace root",
			Action:  "Use a path relative to the workspace root",
			Code:    "PATH001",
		},
	},
	{
		err: ErrNotFound,
		msg: UserMessage{
			Message: "File or directory not found",
			Action:  "List the parent directory to check the name",
			Code:    "FS001",
		},
	},
	{
		err: ErrAlreadyExists,
		msg: UserMessage{
			Message: "File already exists",
			Action:  "Use update_code to replace its content",
			Code:    "FS002",
		},
	},
	{
		err: ErrNotADirectory,
		msg: UserMessage{
			Message: "Path is not a directory",
			Action:  "Pass a directory path",
			Code:    "FS003",
		},
	},
	{
		err: ErrMalformedDocument,
		msg: UserMessage{
			Message: "Stored document is not valid JSON",
			Action:  "Repair or remove the document",
			Code:    "DOC001",
		},
	},
	{
		err: ErrUnsupportedEncoding,
		msg: UserMessage{
			Message: "Could not read CSV file with any supported encoding",
			Action:  "Save the file as UTF-8 or Shift-JIS",
			Code:    "CSV001",
		},
	},
	{
		err: ErrFileTooLarge,
		msg: UserMessage{
			Message: "CSV file exceeds the size limit",
			Action:  "Split the file into smaller exports",
			Code:    "CSV002",
		},
	},
	{
		err: ErrMissingArgument,
		msg: UserMessage{
			Message: "A required argument was not supplied",
			Action:  "Supply exactly one of the accepted argument names",
			Code:    "ARG001",
		},
	},
	{
		err: ErrBusy,
		msg: UserMessage{
			Message: "Another operation is in progress",
			Action:  "Retry after the current operation completes",
			Code:    "OPS001",
		},
	},
}

// errorPattern maps raw OS error text (case-insensitive) to a user message.
// These cover errors that reach the boundary without a sentinel, e.g. a
// permission error from the filesystem.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Permission denied",
			Action:  "Check file permissions inside the workspace",
			Code:    "FS004",
		},
	},
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "File or directory not found",
			Action:  "List the parent directory to check the name",
			Code:    "FS001",
		},
	},
	{
		pattern: "directory not empty",
		msg: UserMessage{
			Message: "Directory is not empty",
			Action:  "Remove the directory contents first",
			Code:    "FS005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "OPS002",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the error log for details",
	Code:    "ERR000",
}

// MapError converts an error into a UserMessage. Sentinels are matched
// first via errors.Is, then raw error text against errorPatterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMappings {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action: detail".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s: %v", msg.Message, msg.Code, msg.Action, err)
}

// IsKnown reports whether err maps to a specific code rather than ERR000.
func IsKnown(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
