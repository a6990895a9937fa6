// Copyright (C) 2026 tydb contributors
//
//	This program is free software: you can redistribute it and/or modify
//	it under the terms of the GNU General Public License as published by
//	the Free Software Foundation, either version 3 of the License, or
//	(at your option) any later version.
//
//	This program is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty of
//	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//	GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package tydb collects the compile-time flags the original spec
// expects, as a flat runtime struct (spec.md §6).
package tydb

import (
	"fmt"
	"strconv"
)

// Config is the flat settings struct every package reads from
// Settings. Fields mirror spec.md §6's listed compile-time flags; Go
// has no build-time struct layout, so they are ordinary fields here.
type Config struct {
	Debug               bool
	EnableAssert        bool
	StoreInLittleEndian bool
	FullNames           bool
	EnableHooks         bool

	DebuggerRead           bool
	DebuggerWrite          bool
	DebuggerEcho           bool
	DebuggerList           bool
	DebuggerIdentification bool
	DebuggerReadMem        bool
	DebuggerWriteMem       bool

	DebuggerAlias        int // max alias count, 0 = disabled
	DebuggerMacro        int // macro byte budget, 0 = disabled
	DebuggerStreams      int // number of trace streams
	DebuggerStreamBuffer int // bytes per stream

	CompressStreams bool // lz4 compression (protocol.Compressor) on trace streams
}

// Trace reports whether trace streams are usable at all: spec.md §6
// defines DebuggerTrace as a derived flag, not an independent one.
func (c Config) Trace() bool {
	return c.DebuggerStreams > 0 && c.DebuggerMacro > 0
}

// Settings is the process-wide configuration instance, mirroring the
// teacher's storage.Settings package variable.
var Settings = Config{
	Debug:                  false,
	EnableAssert:           false,
	StoreInLittleEndian:    true,
	FullNames:              false,
	EnableHooks:            true,
	DebuggerRead:           true,
	DebuggerWrite:          true,
	DebuggerEcho:           true,
	DebuggerList:           true,
	DebuggerIdentification: true,
	DebuggerReadMem:        true,
	DebuggerWriteMem:       true,
	DebuggerAlias:          26,
	DebuggerMacro:          256,
	DebuggerStreams:        4,
	DebuggerStreamBuffer:   1024,
	CompressStreams:        false,
}

// Get reads a setting by name, mirroring the teacher's
// storage.ChangeSettings(name) single-argument form.
func Get(name string) (any, error) {
	switch name {
	case "Debug":
		return Settings.Debug, nil
	case "EnableAssert":
		return Settings.EnableAssert, nil
	case "StoreInLittleEndian":
		return Settings.StoreInLittleEndian, nil
	case "FullNames":
		return Settings.FullNames, nil
	case "EnableHooks":
		return Settings.EnableHooks, nil
	case "DebuggerRead":
		return Settings.DebuggerRead, nil
	case "DebuggerWrite":
		return Settings.DebuggerWrite, nil
	case "DebuggerEcho":
		return Settings.DebuggerEcho, nil
	case "DebuggerList":
		return Settings.DebuggerList, nil
	case "DebuggerIdentification":
		return Settings.DebuggerIdentification, nil
	case "DebuggerReadMem":
		return Settings.DebuggerReadMem, nil
	case "DebuggerWriteMem":
		return Settings.DebuggerWriteMem, nil
	case "DebuggerAlias":
		return Settings.DebuggerAlias, nil
	case "DebuggerMacro":
		return Settings.DebuggerMacro, nil
	case "DebuggerStreams":
		return Settings.DebuggerStreams, nil
	case "DebuggerStreamBuffer":
		return Settings.DebuggerStreamBuffer, nil
	case "DebuggerTrace":
		return Settings.Trace(), nil
	case "CompressStreams":
		return Settings.CompressStreams, nil
	default:
		return nil, fmt.Errorf("tydb: unknown setting %q", name)
	}
}

// Set writes a setting by name from its string form. Unlike Get, an
// unknown name panics: a caller naming a setting that doesn't exist is
// a programmer error at the call site, exactly as the teacher's
// ChangeSettings panics on an unrecognized key rather than returning a
// soft error for it.
func Set(name, value string) {
	switch name {
	case "Debug":
		Settings.Debug = mustBool(value)
	case "EnableAssert":
		Settings.EnableAssert = mustBool(value)
	case "StoreInLittleEndian":
		Settings.StoreInLittleEndian = mustBool(value)
	case "FullNames":
		Settings.FullNames = mustBool(value)
	case "EnableHooks":
		Settings.EnableHooks = mustBool(value)
	case "DebuggerRead":
		Settings.DebuggerRead = mustBool(value)
	case "DebuggerWrite":
		Settings.DebuggerWrite = mustBool(value)
	case "DebuggerEcho":
		Settings.DebuggerEcho = mustBool(value)
	case "DebuggerList":
		Settings.DebuggerList = mustBool(value)
	case "DebuggerIdentification":
		Settings.DebuggerIdentification = mustBool(value)
	case "DebuggerReadMem":
		Settings.DebuggerReadMem = mustBool(value)
	case "DebuggerWriteMem":
		Settings.DebuggerWriteMem = mustBool(value)
	case "DebuggerAlias":
		Settings.DebuggerAlias = mustInt(value)
	case "DebuggerMacro":
		Settings.DebuggerMacro = mustInt(value)
	case "DebuggerStreams":
		Settings.DebuggerStreams = mustInt(value)
	case "DebuggerStreamBuffer":
		Settings.DebuggerStreamBuffer = mustInt(value)
	case "CompressStreams":
		Settings.CompressStreams = mustBool(value)
	default:
		panic("tydb: unknown setting: " + name)
	}
}

func mustBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		panic("tydb: invalid bool value: " + s)
	}
	return v
}

func mustInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		panic("tydb: invalid int value: " + s)
	}
	return v
}
