/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package coderr

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	_ CodeErrorDef = &codeErrorDef{code: 0, desc: ""}
	_ CodeError    = &codeError{code: 0, msg: "", cause: nil, stack: nil}
)

type CodeError interface {
	error
	Code() Code
}

// CodeErrorDef is declared once per kind of error in the error.go of each package, and creates the CodeError
// instances carrying the details of one failure.
type CodeErrorDef interface {
	Code() Code
	WithMessagef(format string, a ...any) CodeError
	WithCause(cause error) CodeError
	WithCausef(cause error, format string, a ...any) CodeError
}

// Is reports whether the code of the cause of err is expectCode.
func Is(err error, expectCode Code) bool {
	code, ok := GetCauseCode(err)
	return ok && code == expectCode
}

// GetCauseCode returns the code of the cause of err, false if the cause is not a CodeError.
func GetCauseCode(err error) (Code, bool) {
	if err == nil {
		return Invalid, false
	}

	cErr, ok := errors.Cause(err).(CodeError)
	if !ok {
		return Invalid, false
	}
	return cErr.Code(), true
}

type codeError struct {
	code Code
	msg  string
	// cause is nil if the error is created by WithMessagef.
	cause error
	// stack records where the error is created.
	stack error
}

func (e *codeError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("[err_code=%d]%s", e.code, e.msg)
	}
	return fmt.Sprintf("[err_code=%d]%s, cause:%v", e.code, e.msg, e.cause)
}

func (e *codeError) Code() Code {
	return e.code
}

// Unwrap lets errors.Is and errors.As reach the cause.
func (e *codeError) Unwrap() error {
	return e.cause
}

// FormatErrorWithStack prints the error with the call stack where it was created, other errors are printed as is.
func FormatErrorWithStack(err error) string {
	cErr, ok := err.(*codeError)
	if !ok {
		return err.Error()
	}
	return fmt.Sprintf("%s, stack:%+v", cErr.Error(), cErr.stack)
}

// NewCodeErrorDef creates the definition of an error, the code should be declared in code.go.
func NewCodeErrorDef(code Code, desc string) CodeErrorDef {
	return &codeErrorDef{
		code: code,
		desc: desc,
	}
}

type codeErrorDef struct {
	code Code
	desc string
}

func (d *codeErrorDef) Code() Code {
	return d.code
}

func (d *codeErrorDef) newError(msg string, cause error) *codeError {
	return &codeError{
		code:  d.code,
		msg:   msg,
		cause: cause,
		stack: errors.WithStack(errors.New(d.desc)),
	}
}

func (d *codeErrorDef) WithMessagef(format string, a ...any) CodeError {
	return d.newError(fmt.Sprintf("%s, %s", d.desc, fmt.Sprintf(format, a...)), nil)
}

func (d *codeErrorDef) WithCause(cause error) CodeError {
	return d.newError(d.desc, cause)
}

func (d *codeErrorDef) WithCausef(cause error, format string, a ...any) CodeError {
	return d.newError(fmt.Sprintf("%s, %s", d.desc, fmt.Sprintf(format, a...)), cause)
}
