package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Kind is the class of a failed model operation.
type Kind int

const (
	KindStoreError Kind = iota
	KindNotFound
	KindDuplicateKey
	KindConnectionFailure
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindConnectionFailure:
		return "connection_failure"
	case KindInvalidArgument:
		return "invalid_argument"
	}
	return "store_error"
}

// Sentinels for errors.Is. Every *Error unwraps to exactly one of these.
var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrConnectionFailure = errors.New("store unavailable")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStoreError        = errors.New("store error")

	// ErrIndexConflict additionally marks a StoreError raised because an
	// index with the same name or keys already exists with other options.
	ErrIndexConflict = errors.New("conflicting index definition")
)

// Server error codes the classifier looks at.
const (
	codeDuplicateKey          = 11000
	codeIndexAlreadyExists    = 68
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// Codes that mean the server could not be reached or is going away.
var connectionCodes = []int{
	6,     // HostUnreachable
	7,     // HostNotFound
	89,    // NetworkTimeout
	91,    // ShutdownInProgress
	9001,  // SocketException
	11600, // InterruptedAtShutdown
}

// Error is returned by every Model operation. It carries the driver's message
// for diagnostics but never the driver's error value.
type Error struct {
	Kind    Kind
	Op      string
	Model   string
	Code    int
	Message string

	conflict bool
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Model != "" {
		b.WriteString(e.Model)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.sentinel().Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.conflict {
		return []error{e.Kind.sentinel(), ErrIndexConflict}
	}
	return []error{e.Kind.sentinel()}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindDuplicateKey:
		return ErrDuplicateKey
	case KindConnectionFailure:
		return ErrConnectionFailure
	case KindInvalidArgument:
		return ErrInvalidArgument
	}
	return ErrStoreError
}

// KindOf reports the Kind of err. Errors that did not come from this package
// are classified first.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return Classify(err)
}

// Invalid builds an InvalidArgument error for a check done before the store
// is contacted.
func Invalid(op, model, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Model: model, Message: fmt.Sprintf(format, args...)}
}

// Wrap converts err into an *Error for operation op on model. It returns nil
// for a nil err and passes through errors that are already classified.
func Wrap(op, model string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		if me.Op == "" || me.Model == "" {
			cp := *me
			if cp.Op == "" {
				cp.Op = op
			}
			if cp.Model == "" {
				cp.Model = model
			}
			return &cp
		}
		return me
	}
	out := &Error{Kind: Classify(err), Op: op, Model: model, Message: err.Error()}
	var se mongo.ServerError
	if errors.As(err, &se) {
		out.Code = serverCode(se)
		out.conflict = se.HasErrorCode(codeIndexOptionsConflict) || se.HasErrorCode(codeIndexKeySpecsConflict)
	}
	return out
}

// Classify maps a driver error to a Kind. Unknown shapes are StoreError.
func Classify(err error) (kind Kind) {
	if err == nil {
		return KindStoreError
	}
	defer func() {
		if recover() != nil {
			kind = KindStoreError
		}
	}()

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return KindNotFound
	case errors.Is(err, mongo.ErrNilDocument),
		errors.Is(err, mongo.ErrNilValue),
		errors.Is(err, mongo.ErrEmptySlice),
		errors.Is(err, mongo.ErrNilCursor),
		errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case mongo.IsDuplicateKeyError(err):
		return KindDuplicateKey
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, mongo.ErrClientDisconnected),
		errors.Is(err, topology.ErrTopologyClosed),
		errors.Is(err, topology.ErrServerSelectionTimeout),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return KindConnectionFailure
	}

	var noEnc bsoncodec.ErrNoEncoder
	if errors.As(err, &noEnc) {
		return KindInvalidArgument
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, code := range connectionCodes {
			if se.HasErrorCode(code) {
				return KindConnectionFailure
			}
		}
	}
	return KindStoreError
}

func serverCode(se mongo.ServerError) int {
	switch e := se.(type) {
	case mongo.CommandError:
		return int(e.Code)
	case mongo.WriteException:
		if len(e.WriteErrors) > 0 {
			return e.WriteErrors[0].Code
		}
		if e.WriteConcernError != nil {
			return e.WriteConcernError.Code
		}
	case mongo.BulkWriteException:
		if len(e.WriteErrors) > 0 {
			return e.WriteErrors[0].Code
		}
	}
	return 0
}

func isAlreadyExists(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeIndexAlreadyExists)
}
