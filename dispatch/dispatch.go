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

// Package dispatch is the Dispatcher: it decodes a queue envelope, routes
// it to a registered handler by (requestClassName, method), runs the
// handler, and writes the response envelope into the response cache keyed
// by requestId. Handlers are registered explicitly at startup rather than
// discovered by annotation/reflection (§9 Design Notes).
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/norsh-org/ledger-worker/cache"
	"github.com/norsh-org/ledger-worker/log"
	"github.com/norsh-org/ledger-worker/result"
)

var logger = log.NewModuleLogger(log.Dispatch)

// Envelope is the queue request/response wire shape (§6). RequestData is
// left as raw JSON so each handler decodes it into its own DTO type.
type Envelope struct {
	RequestID        string          `json:"requestId"`
	RequestClassName string          `json:"requestClassName"`
	Method           string          `json:"method"`
	RequestData      json.RawMessage `json:"requestData,omitempty"`
	Status           result.Status   `json:"status,omitempty"`
	Message          string          `json:"message,omitempty"`
	Data             interface{}     `json:"data,omitempty"`
	Detail           interface{}     `json:"detail,omitempty"`
}

// Handler decodes requestData itself and returns a domain Response. An
// error return is reserved for infrastructure failures (store/lock/cache
// unreachable); Dispatch converts those to Status INTERNAL at this
// boundary and never lets them escape as Go errors past Dispatch itself.
type Handler func(ctx context.Context, requestData json.RawMessage) (result.Response, error)

// Dispatcher routes envelopes to registered handlers and persists
// responses.
type Dispatcher struct {
	handlers    map[string]Handler
	responses   cache.Cache
	responseTTL time.Duration
}

// New builds a Dispatcher. responseTTL should be config.Defaults.MessagingTtlMs.
func New(responses cache.Cache, responseTTL time.Duration) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), responses: responses, responseTTL: responseTTL}
}

// Register binds a handler to a (requestClassName, method) pair. Intended
// to be called only during startup wiring, before any Dispatch call.
func (d *Dispatcher) Register(requestClassName, method string, h Handler) {
	d.handlers[routeKey(requestClassName, method)] = h
}

func routeKey(requestClassName, method string) string {
	return requestClassName + ":" + method
}

// Dispatch decodes raw into an Envelope, invokes the registered handler,
// and writes the response envelope into the cache under requestId. A
// missing route or a handler's infrastructure error resolves to a persisted
// INTERNAL response rather than a Go error. An envelope that cannot be
// decoded, or a response that cannot be written to the cache, is returned
// as a Go error, which the queue routes to its dead-letter path.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrap(err, "dispatch: malformed envelope")
	}

	h, ok := d.handlers[routeKey(env.RequestClassName, env.Method)]
	if !ok {
		logger.Warn("no handler registered", "requestClassName", env.RequestClassName, "method", env.Method)
		return d.writeResponse(ctx, env.RequestID, result.Err(result.INTERNAL, "no handler registered for "+env.RequestClassName+":"+env.Method, nil))
	}

	resp, err := h(ctx, env.RequestData)
	if err != nil {
		logger.Error("handler returned an infrastructure error", "requestId", env.RequestID, "err", err)
		resp = result.Err(result.INTERNAL, "internal error", nil)
	}

	return d.writeResponse(ctx, env.RequestID, resp)
}

func (d *Dispatcher) writeResponse(ctx context.Context, requestID string, resp result.Response) error {
	env := Envelope{
		RequestID: requestID,
		Status:    resp.Status,
		Message:   resp.Message,
		Data:      resp.Data,
		Detail:    resp.Detail,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "dispatch: encoding response envelope")
	}
	if err := d.responses.Set(ctx, requestID, string(b), d.responseTTL); err != nil {
		return errors.Wrap(err, "dispatch: writing response to cache")
	}
	return nil
}
