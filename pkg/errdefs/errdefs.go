// Package errdefs declares the failure kinds shared across the pipeline.
// Components wrap these sentinels with fmt.Errorf("...: %w", ...) so callers
// can classify failures with errors.Is and map them to process exit codes.
package errdefs

import "errors"

var (
	// ErrIngestion: all data-source mirrors failed and the cache is stale or absent.
	ErrIngestion = errors.New("ingestion failed")
	// ErrFilterGeneration: every IRR source in the fallback chain failed or
	// returned nothing while loose mode was off.
	ErrFilterGeneration = errors.New("filter generation failed")
	// ErrConfiguration: malformed governing configuration, or a missing or
	// not-ready vendor plugin for a configured router.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation: a pre-deployment validation stage failed.
	ErrValidation = errors.New("validation failed")
	// ErrConnection: transport-level failure reaching a router.
	ErrConnection = errors.New("connection failed")
	// ErrAuth: authentication failure against a router or the key agent.
	ErrAuth = errors.New("authentication failed")
	// ErrUpload: partial or interrupted file transfer to a router.
	ErrUpload = errors.New("upload failed")
	// ErrActivation: the reload command failed after a successful upload;
	// the router is in the distinct "uploaded, not activated" state.
	ErrActivation = errors.New("activation failed")
	// ErrPartialDeployment: some routers deployed and at least one failed
	// or never started.
	ErrPartialDeployment = errors.New("partial deployment failure")
	// ErrExternalTool: a required external binary is missing or misbehaved.
	ErrExternalTool = errors.New("external tool error")
	// ErrNotImplemented: a vendor plugin is registered as a placeholder only.
	ErrNotImplemented = errors.New("not implemented")
)

// Process exit codes, part of the command surface contract.
const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitToolError      = 2
	ExitConnectionAuth = 3
	ExitValidation     = 4
	ExitUpload         = 5
	ExitPartialFailure = 6
)

// ExitCode maps an error to the stable process exit code for its kind.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrConnection), errors.Is(err, ErrAuth):
		return ExitConnectionAuth
	case errors.Is(err, ErrPartialDeployment):
		return ExitPartialFailure
	case errors.Is(err, ErrUpload), errors.Is(err, ErrActivation):
		return ExitUpload
	case errors.Is(err, ErrExternalTool), errors.Is(err, ErrNotImplemented):
		return ExitToolError
	default:
		return ExitToolError
	}
}
