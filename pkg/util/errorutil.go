package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the workflow core.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeConfigurationError    = "CONFIGURATION_ERROR"
	CodeComplianceDenied      = "COMPLIANCE_DENIED"
	CodeUnknownTool           = "UNKNOWN_TOOL"
	CodeComplianceNotApproved = "COMPLIANCE_NOT_APPROVED"
	CodeToolExecutionFailed   = "TOOL_EXECUTION_FAILED"
	CodeAgentParseError       = "AGENT_PARSE_ERROR"
	CodeAlreadyProcessing     = "ALREADY_PROCESSING"
	CodeWorkflowTimeout       = "WORKFLOW_TIMEOUT"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInternal              = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewRateLimitExceeded signals an exhausted wait or retry budget on the
// outbound model path.
func NewRateLimitExceeded(message string, details map[string]any) error {
	return NewDomainError(CodeRateLimitExceeded, message, http.StatusTooManyRequests, details)
}

// NewConfigurationError signals a structurally unsatisfiable request.
func NewConfigurationError(message string, details map[string]any) error {
	return NewDomainError(CodeConfigurationError, message, http.StatusInternalServerError, details)
}

func NewComplianceDenied(message string, details map[string]any) error {
	return NewDomainError(CodeComplianceDenied, message, http.StatusForbidden, details)
}

func NewUnknownTool(toolName string) error {
	return NewDomainError(CodeUnknownTool, fmt.Sprintf("tool %q is not registered", toolName), http.StatusBadRequest, map[string]any{"tool": toolName})
}

func NewComplianceNotApproved(toolName string) error {
	return NewDomainError(CodeComplianceNotApproved, fmt.Sprintf("no approved compliance decision for %q", toolName), http.StatusForbidden, map[string]any{"tool": toolName})
}

func NewToolExecutionFailure(toolName, detail string) error {
	return NewDomainError(CodeToolExecutionFailed, fmt.Sprintf("tool %q failed: %s", toolName, detail), http.StatusBadGateway, map[string]any{"tool": toolName})
}

func NewAgentParseError(agent string, err error) error {
	return &DomainError{
		Code:       CodeAgentParseError,
		Message:    fmt.Sprintf("%s produced an unparseable response", agent),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"agent": agent},
		Err:        err,
	}
}

func NewAlreadyProcessing(ticketID string) error {
	return NewDomainError(CodeAlreadyProcessing, "ticket already has an in-flight run", http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

func NewWorkflowTimeout(ticketID string) error {
	return NewDomainError(CodeWorkflowTimeout, "workflow exceeded its deadline", http.StatusGatewayTimeout, map[string]any{"ticket_id": ticketID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
