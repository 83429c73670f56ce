package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter ErrorCode = 100
	ErrCodeInvalidOrder     ErrorCode = 101
	ErrCodeInvalidSettings  ErrorCode = 102

	// Storage errors (200-299)
	ErrCodeQueryFailed  ErrorCode = 200
	ErrCodeSchemaFailed ErrorCode = 201
	ErrCodeStoreClosed  ErrorCode = 202

	// Configuration errors (300-399)
	ErrCodeConfigReadFailed  ErrorCode = 300
	ErrCodeConfigWriteFailed ErrorCode = 301
	ErrCodeFlagReadFailed    ErrorCode = 302
	ErrCodeFlagWriteFailed   ErrorCode = 303

	// Gateway errors (400-499)
	ErrCodeGatewayConnectFailed ErrorCode = 400
	ErrCodeGatewayNotConnected  ErrorCode = 401
	ErrCodeGatewaySubmitFailed  ErrorCode = 402

	// Order errors (500-599)
	ErrCodeOrderNotFound     ErrorCode = 500
	ErrCodeOrderUpdateFailed ErrorCode = 501
	ErrCodeRiskBlocked       ErrorCode = 502
)
