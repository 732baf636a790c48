package errors

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

// Is reports whether err carries this code.
func (c Code[MT]) Is(err error) bool {
	var coded Error
	if !errors.As(err, &coded) {
		return false
	}
	return coded.Code() == c.Code
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
	Unwrap() error
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type SecretMetadata struct {
	Length int `json:"length"`
}

type AssetMetadata struct {
	Asset string `json:"asset"`
}

type AddressMetadata struct {
	Address string `json:"address"`
}

type EscrowMetadata struct {
	EscrowId string `json:"escrow_id"`
}

type StatusMetadata struct {
	Status string `json:"status"`
}

type HashMetadata struct {
	Hash  string `json:"hash"`
	Count int    `json:"count"`
}

type PeerMetadata struct {
	Pubkey string `json:"pubkey"`
	Host   string `json:"host"`
}

type SwapMetadata struct {
	SwapId string `json:"swap_id"`
}

type TransitionMetadata struct {
	SwapId string `json:"swap_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type DeadlineMetadata struct {
	SwapId   string `json:"swap_id"`
	Deadline int64  `json:"deadline"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}

// Codec errors (1xx).
var INVALID_ENCODING = Code[SecretMetadata]{100, "INVALID_ENCODING", grpccodes.InvalidArgument}
var INVALID_ASSET = Code[AssetMetadata]{101, "INVALID_ASSET", grpccodes.InvalidArgument}
var INVALID_ADDRESS = Code[AddressMetadata]{102, "INVALID_ADDRESS", grpccodes.InvalidArgument}

// Escrow errors (2xx).
var REMOTE_REJECTED = Code[EscrowMetadata]{200, "REMOTE_REJECTED", grpccodes.FailedPrecondition}

var UNKNOWN_STATUS = Code[StatusMetadata]{
	201,
	"UNKNOWN_STATUS",
	grpccodes.Internal,
}

var AMBIGUOUS_ESCROW = Code[HashMetadata]{
	202,
	"AMBIGUOUS_ESCROW",
	grpccodes.FailedPrecondition,
}

var ESCROW_NOT_FOUND = Code[EscrowMetadata]{203, "ESCROW_NOT_FOUND", grpccodes.NotFound}
var ALREADY_SETTLED = Code[EscrowMetadata]{204, "ALREADY_SETTLED", grpccodes.AlreadyExists}
var ALREADY_CANCELED = Code[EscrowMetadata]{205, "ALREADY_CANCELED", grpccodes.AlreadyExists}

// Channel errors (3xx).
var CHANNEL_OPEN_FAILED = Code[PeerMetadata]{
	300,
	"CHANNEL_OPEN_FAILED",
	grpccodes.Unavailable,
}

// Swap errors (4xx).
var SWAP_NOT_FOUND = Code[SwapMetadata]{400, "SWAP_NOT_FOUND", grpccodes.NotFound}
var EXPIRED_SWAP = Code[DeadlineMetadata]{401, "EXPIRED_SWAP", grpccodes.DeadlineExceeded}

var INVALID_TRANSITION = Code[TransitionMetadata]{
	402,
	"INVALID_TRANSITION",
	grpccodes.FailedPrecondition,
}

var SWAP_NOT_CANCELABLE = Code[SwapMetadata]{
	403,
	"SWAP_NOT_CANCELABLE",
	grpccodes.FailedPrecondition,
}

var INVALID_SWAP_REQUEST = Code[SwapMetadata]{
	404,
	"INVALID_SWAP_REQUEST",
	grpccodes.InvalidArgument,
}
