// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// package errors
var (
	ErrMemoryTypeUnavailable = errors.New("no memory type satisfies the requested properties")
)

// Error is a failed Vulkan call, annotated with the place it was made from.
type Error struct {
	Op     string
	Result vk.Result
	File   string
	Line   int

	err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", filepath.Base(e.File), e.Line, e.Op, e.err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// Check converts a Vulkan result into an error carrying the caller's
// source location. A successful result yields nil.
func Check(op string, result vk.Result) error {
	err := vk.Error(result)
	if err == nil {
		return nil
	}
	return newError(2, op, result, err)
}

// Wrap annotates err with op and the caller's source location.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return newError(2, op, vk.Success, err)
}

func newError(skip int, op string, result vk.Result, err error) *Error {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file, line = "unknown", 0
	}
	return &Error{
		Op:     op,
		Result: result,
		File:   file,
		Line:   line,
		err:    err,
	}
}
