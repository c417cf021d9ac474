package memocore

// ConfigurationError reports a setup defect: decorating the wrong kind of
// callable, an argument type with no usable encoding, or a backend that was
// constructed without its required dependencies. It is never wrapped into a
// cache error by the core; callers are expected to fix the configuration, not
// retry.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
