// Package errors 提供统一错误辅助与错误码，不依赖 internal。
// 错误码是对外契约：Job 行、HTTP body、事件里都用它，不暴露内部错误类型。
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// Code 错误码（kind，不是类型名）；取值集合即对外错误分类法
type Code string

const (
	CodeNone               Code = ""
	CodeInvalidInput       Code = "invalid_input"
	CodeGeocodeFailed      Code = "geocode_failed"
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeModelMismatch      Code = "model_mismatch"
	CodeStrategistFailed   Code = "strategist_failed"
	CodePlannerFailed      Code = "planner_failed"
	CodeValidatorFailed    Code = "validator_failed"
	CodePlannerThrottled   Code = "planner_throttled"
	CodeEnrichmentFailed   Code = "enrichment_failed"
	CodeValidationFailed   Code = "validation_failed"
	CodeBudgetExhausted    Code = "budget_exhausted"
	CodeCancelled          Code = "cancelled"
	// CodeInternal 未归因的失败兜底码；定型点给不出更准确的分类时用
	CodeInternal Code = "internal"
)

// codedError 携带 Code 的错误；errors.Is/As 链可穿透
type codedError struct {
	code Code
	err  error
}

func (e *codedError) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *codedError) Unwrap() error {
	return e.err
}

// WithCode 给错误打上错误码；err 为 nil 时返回 nil。重复打码以最外层为准。
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// Codef 构造带码错误（无底层 err 时用）
func Codef(code Code, format string, args ...interface{}) error {
	return &codedError{code: code, err: fmt.Errorf(format, args...)}
}

// CodeOf 取最外层错误码；无码返回 CodeNone
func CodeOf(err error) Code {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeNone
}

// HasCode err 链上是否带指定错误码
func HasCode(err error, code Code) bool {
	for err != nil {
		if ce, ok := err.(*codedError); ok && ce.code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is errors.Is 透传，调用方免 import 两个 errors
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As errors.As 透传
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New errors.New 透传
func New(text string) error {
	return errors.New(text)
}
