// Package validation provides common validation utilities for arguments
// accepted by the taskchain components.
//
// Every helper returns a *errors.ValidationError so callers can treat a
// rejected argument uniformly, whether they surface it or turn it into a
// no-op outcome.
package validation
