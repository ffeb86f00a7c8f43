package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with field context.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Add adds a new validation error.
func (ve *ValidationErrors) Add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for startup. Any error here must
// prevent the process from starting; nothing is deferred to first request.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs.Add("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Server.Mode {
	case ModeStateful, ModeStateless, ModeShared:
	default:
		errs.Add("server.mode", fmt.Sprintf("must be one of %q, %q, %q, got %q",
			ModeStateful, ModeStateless, ModeShared, c.Server.Mode))
	}

	if c.Server.RateLimit.WindowSeconds <= 0 {
		errs.Add("server.rateLimit.windowSeconds", "must be positive")
	}
	if c.Server.RateLimit.MaxRequests <= 0 {
		errs.Add("server.rateLimit.maxRequests", "must be positive")
	}

	if c.Auth.TenantID == "" && len(c.Auth.Issuers) == 0 {
		errs.Add("auth.tenantId", "is required unless auth.issuers is set explicitly")
	}
	if c.Auth.TenantID == "" && len(c.Auth.KeySetURLs) == 0 {
		errs.Add("auth.keySetUrls", "is required when auth.tenantId is unset")
	}
	if c.Auth.Audience == "" {
		errs.Add("auth.audience", "is required")
	}
	if c.Auth.IssuerBase != "" {
		if u, err := url.Parse(c.Auth.IssuerBase); err != nil || u.Scheme != "https" {
			errs.Add("auth.issuerBase", "must be a valid https URL")
		}
	}
	for i, ks := range c.Auth.KeySetURLs {
		if u, err := url.Parse(ks); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			errs.Add(fmt.Sprintf("auth.keySetUrls[%d]", i), "must be a valid URL")
		}
	}

	// Policy sets are defaulted before validation, so empty here means a
	// broken caller, not a missing config file.
	if len(c.Policy.AllowedRoles) == 0 && len(c.Policy.AllowedScopes) == 0 {
		errs.Add("policy", "at least one allowed role or scope is required")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
