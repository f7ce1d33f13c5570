package app

import (
	"errors"

	"go.uber.org/zap"
)

// ErrValidation marks missing or unusable command input.
var ErrValidation = errors.New("invalid input")

// Severity decides how a collaborator problem is handled: info and warn are
// reported and the command carries on, error ends it.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Notice is a non-fatal message produced while running a command.
type Notice struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

type notices struct {
	logger *zap.Logger
	list   []Notice
}

func (n *notices) add(sev Severity, code, msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	n.list = append(n.list, Notice{Severity: sev, Code: code, Message: msg})
	fields := []zap.Field{zap.String("code", code)}
	switch sev {
	case SeverityWarn:
		n.logger.Warn(msg, fields...)
	case SeverityError:
		n.logger.Error(msg, fields...)
	default:
		n.logger.Info(msg, fields...)
	}
}

func (n *notices) info(code, msg string) { n.add(SeverityInfo, code, msg, nil) }

func (n *notices) warn(code, msg string, err error) { n.add(SeverityWarn, code, msg, err) }
