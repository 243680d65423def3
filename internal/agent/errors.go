package agent

import "errors"

// ConfigurationError marks a request that violates the documented contract:
// unknown mode, missing payload, absent previous report in CLARIFICATION
// phase. Fatal; retrying the same call cannot help.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "agent: configuration error: " + e.Reason
}

func configErr(reason string) error {
	return &ConfigurationError{Reason: reason}
}

// ValidationError marks oracle output that fails schema validation for the
// active mode. Technical and retryable: the caller may re-issue the
// identical call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "agent: oracle output validation: " + e.Reason
}

func validationErr(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a retryable schema-validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConfiguration reports whether err is a fatal contract violation.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
