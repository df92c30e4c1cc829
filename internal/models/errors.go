package models

import "github.com/pkg/errors"

var (
	// ErrStartupFault: required exchange metadata is missing, the process must not start.
	ErrStartupFault = errors.New("startup fault")
	// ErrStateCorrupt: persisted stop-loss record is unreadable or malformed.
	ErrStateCorrupt = errors.New("state corrupt")
	// ErrStateWrite: persisted stop-loss record could not be replaced.
	ErrStateWrite = errors.New("state write failed")
	// ErrGatewayFault: network/API call failed.
	ErrGatewayFault = errors.New("gateway fault")
	// ErrOrderRejected: exchange answered with a non-ok status or an error entry instead of a fill.
	ErrOrderRejected = errors.New("order rejected")
)
