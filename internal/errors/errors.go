// Package errors defines the error codes of the VELM runtime and the
// last-error slot of the attached instance.
//
// Codes are grouped by module with fixed base offsets so their numeric
// values stay stable as a group grows. A Code is also a Go error, and
// CodeOf recovers the code from a wrapped error chain.
package errors

import (
	"fmt"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
)

// Code identifies a failure condition.
type Code int

// First codes of each module group.
const (
	FirstGeneric  Code = 0
	FirstVariant  Code = 100
	FirstStream   Code = 200
	FirstEJSON    Code = 1100
	FirstMarkup   Code = 1200
	FirstHTML     Code = 1300
	FirstExecutor Code = 2400
)

// Generic codes.
const (
	OK Code = FirstGeneric + iota
	BadSystemCall
	BadStdCall
	OutOfMemory
	InvalidValue
	Duplicated
	NotImplemented
	NoInstance
	TooLargeEntity
	BadEncoding
	NotSupported
	Output
	TooSmallBuffer
	TooSmallSize
	NullObject
	IncompleteObject
	NoFreeSlot
	NotExists
	WrongArgs
	WrongStage
	UnexpectedResult
	UnexpectedData
	Overflow
	Unknown
	BadLocaleCategory
	EntityNotFound
	BadName
	NoData

	lastGeneric = NoData
)

// NrGeneric is the number of generic codes.
const NrGeneric = int(lastGeneric-FirstGeneric) + 1

// Variant codes.
const (
	VariantInvalidType Code = FirstVariant + iota
	VariantNotFound

	lastVariant = VariantNotFound
)

// NrVariant is the number of variant codes.
const NrVariant = int(lastVariant-FirstVariant) + 1

// Stream codes.
const (
	StreamFailed Code = FirstStream + iota
	StreamFileTooBig
	StreamIO
	StreamIsDir
	StreamNoSpace
	StreamNoDeviceOrAddress
	StreamOverflow
	StreamPipe

	lastStream = StreamPipe
)

// NrStream is the number of stream codes.
const NrStream = int(lastStream-FirstStream) + 1

// EJSON codes (canonical-form parsing).
const (
	EJSONUnexpectedCharacter Code = FirstEJSON + iota
	EJSONUnexpectedEOF
	EJSONBadNumber
	EJSONBadStringEscape
	EJSONBadBase64
	EJSONMaxDepthExceeded

	lastEJSON = EJSONMaxDepthExceeded
)

// NrEJSON is the number of ejson codes.
const NrEJSON = int(lastEJSON-FirstEJSON) + 1

// Markup codes (document tokenizer/parser).
const (
	MarkupUnexpectedNullCharacter Code = FirstMarkup + iota
	MarkupEOFBeforeTagName
	MarkupMissingEndTagName
	MarkupBadFirstCharacterOfTagName
	MarkupEOFInTag
	MarkupMissingAttributeValue
	MarkupEOFInComment
	MarkupNestedComment
	MarkupUnexpectedCharacter
	MarkupInvalidUTF8Character

	lastMarkup = MarkupInvalidUTF8Character
)

// NrMarkup is the number of markup codes.
const NrMarkup = int(lastMarkup-FirstMarkup) + 1

// HTML codes (output document).
const (
	HTMLBadSelector Code = FirstHTML + iota
	HTMLNoSuchElement

	lastHTML = HTMLNoSuchElement
)

// NrHTML is the number of html codes.
const NrHTML = int(lastHTML-FirstHTML) + 1

// Executor codes.
const (
	ExecutorNotImplemented Code = FirstExecutor + iota
	ExecutorNoKeysSelectedPreviously
	ExecutorNoKeysSelected
	ExecutorBadSyntax

	lastExecutor = ExecutorBadSyntax
)

// NrExecutor is the number of executor codes.
const NrExecutor = int(lastExecutor-FirstExecutor) + 1

var messages = map[Code]string{
	OK:                "Ok",
	BadSystemCall:     "Bad system call",
	BadStdCall:        "Bad STDC call",
	OutOfMemory:       "Out of memory",
	InvalidValue:      "Invalid value",
	Duplicated:        "Duplicated",
	NotImplemented:    "Not implemented",
	NoInstance:        "No instance",
	TooLargeEntity:    "Too large entity",
	BadEncoding:       "Bad encoding",
	NotSupported:      "Not supported",
	Output:            "An output error is encountered",
	TooSmallBuffer:    "Too small buffer",
	TooSmallSize:      "Too small size",
	NullObject:        "Null object",
	IncompleteObject:  "Incomplete object",
	NoFreeSlot:        "No free slot",
	NotExists:         "Does not exist",
	WrongArgs:         "Wrong arguments",
	WrongStage:        "Wrong stage",
	UnexpectedResult:  "Unexpected result",
	UnexpectedData:    "Unexpected data",
	Overflow:          "Overflow",
	Unknown:           "Unknown",
	BadLocaleCategory: "Bad locale category",
	EntityNotFound:    "Entity not found",
	BadName:           "Bad name",
	NoData:            "No data",

	VariantInvalidType: "Invalid variant type",
	VariantNotFound:    "Not found",

	StreamFailed:            "Stream operation failed",
	StreamFileTooBig:        "File too big",
	StreamIO:                "IO error",
	StreamIsDir:             "Is a directory",
	StreamNoSpace:           "No space on device",
	StreamNoDeviceOrAddress: "No such device or address",
	StreamOverflow:          "Value too large for defined data type",
	StreamPipe:              "Broken pipe",

	EJSONUnexpectedCharacter: "Unexpected character",
	EJSONUnexpectedEOF:       "Unexpected end of input",
	EJSONBadNumber:           "Bad number",
	EJSONBadStringEscape:     "Bad string escape entity",
	EJSONBadBase64:           "Bad base64 payload",
	EJSONMaxDepthExceeded:    "Maximum depth exceeded",

	MarkupUnexpectedNullCharacter:    "Unexpected null character",
	MarkupEOFBeforeTagName:           "EOF before tag name",
	MarkupMissingEndTagName:          "Missing end tag name",
	MarkupBadFirstCharacterOfTagName: "Invalid first character of tag name",
	MarkupEOFInTag:                   "EOF in tag",
	MarkupMissingAttributeValue:      "Missing attribute value",
	MarkupEOFInComment:               "EOF in comment",
	MarkupNestedComment:              "Nested comment",
	MarkupUnexpectedCharacter:        "Unexpected character",
	MarkupInvalidUTF8Character:       "Invalid UTF-8 character",

	HTMLBadSelector:   "Bad selector",
	HTMLNoSuchElement: "No such element",

	ExecutorNotImplemented:           "Executor not implemented",
	ExecutorNoKeysSelectedPreviously: "No keys selected previously",
	ExecutorNoKeysSelected:           "No keys selected",
	ExecutorBadSyntax:                "Bad executor syntax",
}

// Message returns the text for code, or a placeholder for codes out of
// any known group.
func Message(code Code) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error code %d", int(code))
}

// Error makes Code usable as a Go error.
func (c Code) Error() string { return Message(c) }

// Errorf wraps code with formatted context. The code remains
// recoverable through CodeOf.
func Errorf(code Code, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(code, format, args...)
}

// CodeOf walks the cause chain of err and returns the embedded Code,
// or Unknown when none is found. A nil err yields OK.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := pkgerrors.Cause(err).(Code); ok {
		return c
	}
	return Unknown
}

// The last-error slot of the attached instance. The runtime allows a
// single attached instance per process, so the slot lives here where
// every module can reach it without import cycles.
var last atomic.Int32

// SetLast records code as the last error and returns it.
func SetLast(code Code) Code {
	last.Store(int32(code))
	return code
}

// Last returns the last recorded error code.
func Last() Code { return Code(last.Load()) }

// ClearLast resets the last error to OK.
func ClearLast() { last.Store(int32(OK)) }
