package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal      ErrorCode = "COMMON_001"
	ErrCodeBadRequest    ErrorCode = "COMMON_002"
	ErrCodeNotFound      ErrorCode = "COMMON_005"
	ErrCodeConflict      ErrorCode = "COMMON_006"
	ErrCodeTimeout       ErrorCode = "COMMON_009"
	ErrCodeValidation    ErrorCode = "COMMON_010"
	ErrCodeSerialization ErrorCode = "COMMON_011"
	ErrCodeDatabaseError ErrorCode = "COMMON_012"
	ErrCodeCacheError    ErrorCode = "COMMON_013"
	ErrCodeUnknown       ErrorCode = "COMMON_999"
)

// Obligation module error codes.
const (
	ErrCodeUnknownObligationType ErrorCode = "OBL_001"
	ErrCodeCast                  ErrorCode = "OBL_002"
	ErrCodeObligationNotFound    ErrorCode = "OBL_003"
)

// Derivative module error codes.
const (
	ErrCodeDerivativeNotFound ErrorCode = "DRV_001"
)

// Risk catalogue error codes.
const (
	ErrCodeRiskNotFound ErrorCode = "RSK_001"
	ErrCodeRiskInUse    ErrorCode = "RSK_002"
)

// Short aliases used across the repository layer.
const (
	CodeInternal = ErrCodeInternal
	CodeNotFound = ErrCodeNotFound
	CodeConflict = ErrCodeConflict
	CodeUnknown  = ErrCodeUnknown
	CodeOK       = ErrorCode("OK")
)

var defaultMessages = map[ErrorCode]string{
	ErrCodeInternal:              "internal error",
	ErrCodeBadRequest:            "bad request",
	ErrCodeNotFound:              "resource not found",
	ErrCodeConflict:              "resource conflict",
	ErrCodeTimeout:               "operation timed out",
	ErrCodeValidation:            "validation failed",
	ErrCodeSerialization:         "serialization failed",
	ErrCodeDatabaseError:         "persistence failure",
	ErrCodeCacheError:            "cache failure",
	ErrCodeUnknownObligationType: "unknown insurance type",
	ErrCodeCast:                  "invalid obligation cast",
	ErrCodeObligationNotFound:    "obligation not found",
	ErrCodeDerivativeNotFound:    "derivative not found",
	ErrCodeRiskNotFound:          "risk not found",
	ErrCodeRiskInUse:             "risk is referenced by an obligation",
}

// DefaultMessageForCode returns the canonical message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of code ("COMMON", "OBL", ...).
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return s[:i]
		}
	}
	return s
}
