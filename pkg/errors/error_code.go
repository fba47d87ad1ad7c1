package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-149)
	ErrCodeMissingBaseURL       ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingCredentials   ErrorCode = 102
	ErrCodeInvalidEnvironment   ErrorCode = 103

	// Validation errors (150-199)
	ErrCodeInvalidParameter ErrorCode = 150
	ErrCodeMissingParameter ErrorCode = 151
	ErrCodeInvalidRoute     ErrorCode = 152
	ErrCodeInvalidType      ErrorCode = 153

	// Rate limit errors (200-299)
	ErrCodeRateLimitExceeded ErrorCode = 200
	ErrCodeInvalidRate       ErrorCode = 201
	ErrCodeRateStoreFailed   ErrorCode = 202

	// Cache errors (300-399)
	ErrCodeCacheReadFailed  ErrorCode = 300
	ErrCodeCacheWriteFailed ErrorCode = 301

	// Transport errors (400-499)
	ErrCodeRequestFailed  ErrorCode = 400
	ErrCodeRequestTimeout ErrorCode = 401

	// Upstream errors (500-599)
	ErrCodeUpstreamError     ErrorCode = 500
	ErrCodeUpstreamRateLimit ErrorCode = 501
	ErrCodeUpstreamBadBody   ErrorCode = 502

	// Serialization errors (600-699)
	ErrCodeEnvelopeCorrupt         ErrorCode = 600
	ErrCodeEnvelopeVersionMismatch ErrorCode = 601
	ErrCodeEncodeFailed            ErrorCode = 602
	ErrCodeDecodeFailed            ErrorCode = 603

	// Store errors (700-799)
	ErrCodeStoreInitFailed  ErrorCode = 700
	ErrCodeStoreWriteFailed ErrorCode = 701
	ErrCodeStoreQueryFailed ErrorCode = 702
)
