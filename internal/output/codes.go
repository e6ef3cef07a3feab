// Package output provides JSON output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK         = 0  // Success
	ExitUsage      = 1  // Invalid arguments or flags
	ExitNotFound   = 2  // Resource not found
	ExitAuth       = 3  // Authentication failed or missing credentials
	ExitForbidden  = 4  // Access denied
	ExitRateLimit  = 5  // Rate limited (429)
	ExitNetwork    = 6  // Connection/DNS error
	ExitTimeout    = 7  // Request timed out
	ExitServer     = 8  // Server-side error (5xx)
	ExitValidation = 9  // Input validation failed before any network call
	ExitAPI        = 10 // Other API error
)

// Error codes for the JSON envelope.
const (
	CodeUsage      = "usage"
	CodeNotFound   = "not_found"
	CodeAuth       = "auth_failed"
	CodeForbidden  = "forbidden"
	CodeRateLimit  = "rate_limit"
	CodeNetwork    = "network"
	CodeTimeout    = "timeout"
	CodeServer     = "server_error"
	CodeValidation = "validation"
	CodeAPI        = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeTimeout:
		return ExitTimeout
	case CodeServer:
		return ExitServer
	case CodeValidation:
		return ExitValidation
	case CodeAPI:
		return ExitAPI
	default:
		return ExitAPI
	}
}
