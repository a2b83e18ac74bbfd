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

// Package log provides the module-scoped structured logger used across the
// ledger worker. It is a thin wrapper over zap so call sites keep the
// key/value logging style the rest of the codebase is written in.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module identifies the subsystem a logger belongs to, used only to tag
// output; it carries no behavior of its own.
type Module string

const (
	Lock        Module = "lock"
	Sequence    Module = "sequence"
	Balance     Module = "balance"
	Ledger      Module = "ledger"
	Block       Module = "block"
	Miner       Module = "miner"
	Element     Module = "element"
	Dispatch    Module = "dispatch"
	Store       Module = "store"
	Cache       Module = "cache"
	Queue       Module = "queue"
	Config      Module = "config"
	Main        Module = "main"
)

var (
	baseOnce sync.Once
	base     *zap.SugaredLogger
	level    = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func root() *zap.SugaredLogger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), level)
		base = zap.New(core).Sugar()
	})
	return base
}

// SetLevel adjusts the process-wide minimum severity. Intended to be called
// once at startup from configuration.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// Logger is the interface call sites depend on, matching the teacher's
// log15-flavored verb set (Trace/Debug/Info/Warn/Error/Crit) reduced to the
// verbs this worker actually uses.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	Crit(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
}

type moduleLogger struct {
	module Module
	sugar  *zap.SugaredLogger
}

// NewModuleLogger returns the package-level logger for module m, mirroring
// the teacher's log.NewModuleLogger(log.Common) convention.
func NewModuleLogger(m Module) Logger {
	return &moduleLogger{module: m, sugar: root().With("module", string(m))}
}

func (l *moduleLogger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *moduleLogger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *moduleLogger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *moduleLogger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

// Crit logs at error severity and terminates the process. Reserved for
// startup wiring failures; never called from request-handling paths.
func (l *moduleLogger) Crit(msg string, kv ...interface{}) {
	l.sugar.Errorw(msg, kv...)
	os.Exit(1)
}

func (l *moduleLogger) With(kv ...interface{}) Logger {
	return &moduleLogger{module: l.module, sugar: l.sugar.With(kv...)}
}
