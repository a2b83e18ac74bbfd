// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package result models handler outcomes as a sum type instead of Go
// errors: domain failures (duplicate hash, missing element, insufficient
// balance, ...) are data, not exceptions, and never cross the worker
// boundary as a panic or an unwrapped error. Infrastructure failures (lock
// unreachable, store unreachable) stay on the ordinary Go error channel and
// are converted to Status INTERNAL only at the dispatcher boundary.
package result

// Status is the outcome taxonomy handlers report.
type Status string

const (
	OK                   Status = "OK"
	EXISTS               Status = "EXISTS"
	NOT_FOUND            Status = "NOT_FOUND"
	FORBIDDEN            Status = "FORBIDDEN"
	INSUFFICIENT_BALANCE Status = "INSUFFICIENT_BALANCE"
	ERROR                Status = "ERROR"
	INTERNAL             Status = "INTERNAL"
)

// Response is the {Ok(T), Err(Status, Message, Detail?)} sum type.
type Response struct {
	Status  Status      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

// Ok wraps a successful handler result.
func Ok(data interface{}) Response {
	return Response{Status: OK, Data: data}
}

// Err builds a domain failure response.
func Err(status Status, message string, detail interface{}) Response {
	return Response{Status: status, Message: message, Detail: detail}
}

// IsOK reports whether r represents success.
func (r Response) IsOK() bool { return r.Status == OK }
