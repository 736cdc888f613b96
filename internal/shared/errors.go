package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication and session errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrInstrumentNotFound = fmt.Errorf("instrument not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrNotFound           = fmt.Errorf("not found")

	// Trading errors
	ErrInsufficientFunds = fmt.Errorf("insufficient funds")
	ErrPriceUnavailable  = fmt.Errorf("current price unavailable")

	// Pipeline errors
	ErrJobRunning     = fmt.Errorf("job already running")
	ErrJobUnknown     = fmt.Errorf("unknown job")
	ErrPipelineFailed = fmt.Errorf("pipeline failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
