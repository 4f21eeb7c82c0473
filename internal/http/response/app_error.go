package response

import "errors"

// AppError 统一错误包装
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
// 被包装的错误本身已是 AppError 时沿用其业务码与文案,避免多层包装丢失原始语义
func WrapError(code int, message string, err error) *AppError {
	var inner *AppError
	if errors.As(err, &inner) {
		return inner
	}
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
