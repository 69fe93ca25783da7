// Package dnspyerr defines the error taxonomy shared across dnspy's
// components. Each type wraps an underlying cause so callers can use
// errors.As/errors.Is at the boundary that needs to react to it
// (config loading aborts the process, per-datagram failures only log).
package dnspyerr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ConfigError reports one or more invalid or missing configuration
// values. It is fatal at startup.
type ConfigError struct {
	errs *multierror.Error
}

// NewConfigError wraps causes into a ConfigError. Passing no causes
// still yields a non-nil, empty error so callers can always append to
// it before deciding whether to return it.
func NewConfigError(causes ...error) *ConfigError {
	ce := &ConfigError{errs: &multierror.Error{}}
	for _, c := range causes {
		ce.errs = multierror.Append(ce.errs, c)
	}
	return ce
}

// Add appends another cause to the error.
func (e *ConfigError) Add(cause error) {
	e.errs = multierror.Append(e.errs, cause)
}

// HasErrors reports whether any cause has been recorded.
func (e *ConfigError) HasErrors() bool {
	return e.errs.Len() > 0
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.errs.Error())
}

// Unwrap exposes the individual causes for errors.As/errors.Is.
func (e *ConfigError) Unwrap() []error {
	return e.errs.WrappedErrors()
}

// PluginNotFound is a non-fatal condition: a plugin named in
// Settings.Plugins was not discovered in the registry. The offending
// plugin is logged and skipped; startup continues.
type PluginNotFound struct {
	Plugin string
}

func (e *PluginNotFound) Error() string {
	return fmt.Sprintf("plugin %q not found", e.Plugin)
}

// PluginInitError wraps a failure constructing a plugin instance. It
// is fatal at startup.
type PluginInitError struct {
	Plugin string
	Cause  error
}

func (e *PluginInitError) Error() string {
	return fmt.Sprintf("plugin %q failed to initialize: %v", e.Plugin, e.Cause)
}

func (e *PluginInitError) Unwrap() error { return e.Cause }

// MalformedMessage reports a datagram that failed DNS wire parsing.
// The datagram is dropped and this is logged, never propagated.
type MalformedMessage struct {
	Cause error
}

func (e *MalformedMessage) Error() string {
	return fmt.Sprintf("malformed DNS message: %v", e.Cause)
}

func (e *MalformedMessage) Unwrap() error { return e.Cause }

// UpstreamTimeout reports that the upstream resolver did not respond
// within the configured deadline. The forwarding stage is abandoned
// for that message; previously populated answers are still returned.
type UpstreamTimeout struct {
	Cause error
}

func (e *UpstreamTimeout) Error() string {
	return fmt.Sprintf("upstream timeout: %v", e.Cause)
}

func (e *UpstreamTimeout) Unwrap() error { return e.Cause }

// UpstreamIOError reports a non-timeout transport failure talking to
// the upstream resolver.
type UpstreamIOError struct {
	Cause error
}

func (e *UpstreamIOError) Error() string {
	return fmt.Sprintf("upstream i/o error: %v", e.Cause)
}

func (e *UpstreamIOError) Unwrap() error { return e.Cause }

// StoreError reports a KV store failure observed inside a filter. The
// filter logs and fails open (treats the question as unmatched).
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// ResponseSendError reports a failure writing the reply back to the
// client. It is logged and the datagram is dropped.
type ResponseSendError struct {
	Cause error
}

func (e *ResponseSendError) Error() string {
	return fmt.Sprintf("response send error: %v", e.Cause)
}

func (e *ResponseSendError) Unwrap() error { return e.Cause }
