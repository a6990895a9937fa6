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

// Package debugger implements the line-oriented ASCII command
// dispatcher of spec.md §4.7: one line in, one `!`-or-`?` response out.
// Framing (segmentation, compression, the terminal layer) is supplied
// by the protocol package below it; this package only ever sees
// complete lines.
package debugger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	units "github.com/docker/go-units"

	"github.com/launix-de/tydb"
	"github.com/launix-de/tydb/directory"
	"github.com/launix-de/tydb/protocol"
	"github.com/launix-de/tydb/variant"
)

var (
	respOK  = []byte{'!'}
	respErr = []byte{'?'}
)

// captureLayer sits at one end of a one-shot protocol.Layer chain and
// records whatever reaches its Encode/Decode, letting streamRing reuse
// the real Compressor layer for a single self-contained round trip
// instead of hand-rolling lz4 framing.
type captureLayer struct {
	protocol.Base
	out []byte
}

func (c *captureLayer) Encode(p []byte, last bool) error {
	c.out = append(c.out, p...)
	return nil
}

func (c *captureLayer) Decode(p []byte) error {
	c.out = append(c.out, p...)
	return nil
}

// compressChunk lz4-compresses b into one self-contained frame using
// protocol.Compressor, per spec.md §6 (CompressStreams).
func compressChunk(b []byte) ([]byte, error) {
	comp := protocol.NewCompressor()
	sink := &captureLayer{}
	protocol.Link(comp, sink)
	if err := comp.Encode(b, true); err != nil {
		return nil, err
	}
	return sink.out, nil
}

// decompressChunk reverses compressChunk.
func decompressChunk(frame []byte) ([]byte, error) {
	comp := protocol.NewCompressor()
	sink := &captureLayer{}
	protocol.Link(sink, comp)
	if err := comp.Decode(frame); err != nil {
		return nil, err
	}
	return sink.out, nil
}

// streamChunk is one push's worth of trace bytes, optionally stored
// lz4-compressed when tydb.Settings.CompressStreams is set.
type streamChunk struct {
	decodedLen int
	data       []byte
	compressed bool
}

// streamRing is a bounded byte queue: pushing past capacity drops the
// oldest whole chunks until the total fits (the newest chunk is always
// kept, even when it alone exceeds capacity), draining removes from the
// front. Grounded on the same
// "accumulate until a consumer drains" shape as protocol/fifo's
// MessageFifo, simplified here because stream bytes carry no message
// boundaries to preserve. Capacity is always measured in decompressed
// bytes, so CompressStreams shrinks the ring's memory footprint
// without changing what DebuggerStreamBuffer means to an operator.
type streamRing struct {
	chunks   []streamChunk
	total    int // sum of decodedLen across chunks currently buffered
	capacity int
}

func newStreamChunk(b []byte) streamChunk {
	c := streamChunk{decodedLen: len(b), data: append([]byte(nil), b...)}
	if tydb.Settings.CompressStreams {
		if compressed, err := compressChunk(b); err == nil && len(compressed) > 0 {
			c.data, c.compressed = compressed, true
		} else if err != nil {
			debugf("compressChunk failed, storing raw: %v", err)
		}
	}
	return c
}

func (c streamChunk) decode() []byte {
	if !c.compressed {
		return c.data
	}
	out, err := decompressChunk(c.data)
	if err != nil {
		debugf("decompressChunk failed: %v", err)
		return nil
	}
	return out
}

func (r *streamRing) push(b []byte) {
	if len(b) == 0 {
		return
	}
	chunk := newStreamChunk(b)
	r.chunks = append(r.chunks, chunk)
	r.total += chunk.decodedLen
	for r.total > r.capacity && len(r.chunks) > 1 {
		r.total -= r.chunks[0].decodedLen
		r.chunks = r.chunks[1:]
	}
}

// drain removes and returns up to n decompressed bytes from the front
// of the ring (everything buffered, if n is negative or exceeds it). A
// chunk consumed only in part is replaced by a fresh chunk holding its
// undrained remainder, compressed or not according to the
// CompressStreams setting at the time of the drain.
func (r *streamRing) drain(n int) []byte {
	if n < 0 || n > r.total {
		n = r.total
	}
	out := make([]byte, 0, n)
	for len(out) < n && len(r.chunks) > 0 {
		plain := r.chunks[0].decode()
		need := n - len(out)
		if need >= len(plain) {
			out = append(out, plain...)
			r.total -= r.chunks[0].decodedLen
			r.chunks = r.chunks[1:]
			continue
		}
		out = append(out, plain[:need]...)
		rest := plain[need:]
		r.total -= r.chunks[0].decodedLen
		r.chunks[0] = newStreamChunk(rest)
		r.total += r.chunks[0].decodedLen
	}
	return out
}

type macro struct {
	body [][]byte // sub-commands, already split on the definer's separator
	size int      // raw definition bytes, counted against DebuggerMacro's budget
}

// Debugger holds the alias table, macro store and trace streams bound
// to one (store, directory) pair. It has no transport and no timer of
// its own: Process handles one inbound line, and Tick runs every
// macro currently bound to a stream, matching spec.md §1's exclusion
// of a poller/select layer from this module's scope.
type Debugger struct {
	store *variant.Store
	dir   []byte

	mu        sync.Mutex
	aliases   map[byte]string
	macros    map[byte]macro
	macroSize int
	streams   []streamRing
	traceBind map[byte]int // macro char -> stream index
}

// New returns a Debugger serving name lookups against dir over store,
// sized from the process-wide tydb.Settings at construction time.
func New(store *variant.Store, dir []byte) *Debugger {
	d := &Debugger{
		store:     store,
		dir:       dir,
		aliases:   make(map[byte]string),
		macros:    make(map[byte]macro),
		traceBind: make(map[byte]int),
		streams:   make([]streamRing, tydb.Settings.DebuggerStreams),
	}
	for i := range d.streams {
		d.streams[i].capacity = tydb.Settings.DebuggerStreamBuffer
	}
	return d
}

func ok(payload []byte) []byte { return append(append([]byte(nil), respOK...), payload...) }

// Process dispatches one command line (no trailing newline) and
// returns its response: `!` plus payload, or a bare `?` on any error
// (spec.md §4.7/§7 — ParseError and CapacityExceeded both surface this
// way, never as a panic or a dropped frame).
func (d *Debugger) Process(line []byte) []byte {
	if len(line) == 0 {
		return respErr
	}
	cmd, args := line[0], line[1:]
	switch cmd {
	case '?':
		return ok(d.capability())
	case 'r':
		return d.cmdRead(args)
	case 'w':
		return d.cmdWrite(args)
	case 'e':
		return d.cmdEcho(args)
	case 'l':
		return d.cmdList(args)
	case 'a':
		return d.cmdAlias(args)
	case 'm':
		return d.cmdMacro(args)
	case 's':
		return d.cmdStream(args)
	case 't':
		return d.cmdTrace(args)
	case 'i':
		return d.cmdIdentification()
	case 'v':
		return d.cmdVersion()
	case 'R':
		return d.cmdReadMem(args)
	case 'W':
		return d.cmdWriteMem(args)
	default:
		debugf("unknown command %q", cmd)
		return respErr
	}
}

// capability reports one space-separated tag per command whose
// enabling flag is set, per spec.md §4.7/§8 ("`?` returns the
// capability string whose presence of a tag implies the corresponding
// command succeeds on at least one well-formed input").
func (d *Debugger) capability() []byte {
	var tags []string
	if tydb.Settings.DebuggerRead {
		tags = append(tags, "r")
	}
	if tydb.Settings.DebuggerWrite {
		tags = append(tags, "w")
	}
	if tydb.Settings.DebuggerEcho {
		tags = append(tags, "e")
	}
	if tydb.Settings.DebuggerList {
		tags = append(tags, "l")
	}
	if tydb.Settings.DebuggerAlias > 0 {
		tags = append(tags, "a")
	}
	if tydb.Settings.DebuggerMacro > 0 {
		tags = append(tags, "m:"+units.BytesSize(float64(tydb.Settings.DebuggerMacro)))
	}
	if tydb.Settings.DebuggerStreams > 0 {
		tags = append(tags, fmt.Sprintf("s:%dx%s", tydb.Settings.DebuggerStreams,
			units.BytesSize(float64(tydb.Settings.DebuggerStreamBuffer))))
		if tydb.Settings.Trace() {
			tags = append(tags, "t")
		}
	}
	if tydb.Settings.DebuggerIdentification {
		tags = append(tags, "i")
	}
	tags = append(tags, "v")
	if tydb.Settings.DebuggerReadMem {
		tags = append(tags, "R")
	}
	if tydb.Settings.DebuggerWriteMem {
		tags = append(tags, "W")
	}
	return []byte(strings.Join(tags, " "))
}

// resolveName expands a one-byte alias handle to its bound name;
// anything else is taken as a literal directory name verbatim.
func (d *Debugger) resolveName(raw []byte) string {
	if len(raw) == 1 {
		d.mu.Lock()
		name, ok := d.aliases[raw[0]]
		d.mu.Unlock()
		if ok {
			return name
		}
	}
	return string(raw)
}

// hexShortest renders b as leading-zero-byte-suppressed hex, the
// "shortest" encoding spec.md §4.7 requires for `r`'s reply.
func hexShortest(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	enc := make([]byte, hex.EncodedLen(len(b)-i))
	hex.Encode(enc, b[i:])
	return enc
}

func (d *Debugger) cmdRead(args []byte) []byte {
	if !tydb.Settings.DebuggerRead {
		return respErr
	}
	v := directory.Find(d.store, d.dir, d.resolveName(args))
	if !v.Valid() {
		return respErr
	}
	buf := make([]byte, v.Size())
	n, err := v.Get(buf)
	if err != nil {
		return respErr
	}
	if n == 0 {
		return ok(nil)
	}
	return ok(hexShortest(buf[:n]))
}

// cmdWrite parses "<hexvalue>=<name>": a shortest-form hex value, a
// literal '=', then the target name (or one-byte alias).
func (d *Debugger) cmdWrite(args []byte) []byte {
	if !tydb.Settings.DebuggerWrite {
		return respErr
	}
	eq := bytes.IndexByte(args, '=')
	if eq < 0 {
		return respErr
	}
	hexPart, namePart := args[:eq], args[eq+1:]
	if len(hexPart)%2 != 0 {
		hexPart = append([]byte{'0'}, hexPart...)
	}
	raw := make([]byte, hex.DecodedLen(len(hexPart)))
	if _, err := hex.Decode(raw, hexPart); err != nil {
		return respErr
	}
	v := directory.Find(d.store, d.dir, d.resolveName(namePart))
	if !v.Valid() {
		return respErr
	}
	sized := make([]byte, v.Size())
	if len(raw) > len(sized) {
		raw = raw[len(raw)-len(sized):] // drop excess leading bytes, zero or not
	}
	copy(sized[len(sized)-len(raw):], raw)
	if _, err := v.Set(sized); err != nil {
		return respErr
	}
	return ok(nil)
}

func (d *Debugger) cmdEcho(args []byte) []byte {
	if !tydb.Settings.DebuggerEcho {
		return respErr
	}
	return ok(args)
}

func (d *Debugger) cmdList(args []byte) []byte {
	if !tydb.Settings.DebuggerList {
		return respErr
	}
	var out bytes.Buffer
	directory.List(d.store, d.dir, string(args), func(name string, v variant.Variant) bool {
		fmt.Fprintf(&out, "%s %d %s\n", v.Type().String(), v.Size(), name)
		return true
	})
	d.mu.Lock()
	aliasCount, macroSize := len(d.aliases), d.macroSize
	d.mu.Unlock()
	if tydb.Settings.DebuggerAlias > 0 {
		fmt.Fprintf(&out, "# aliases %d/%d\n", aliasCount, tydb.Settings.DebuggerAlias)
	}
	if tydb.Settings.DebuggerMacro > 0 {
		fmt.Fprintf(&out, "# macro budget %s/%s\n",
			units.BytesSize(float64(macroSize)), units.BytesSize(float64(tydb.Settings.DebuggerMacro)))
	}
	return ok(out.Bytes())
}

func (d *Debugger) cmdAlias(args []byte) []byte {
	if tydb.Settings.DebuggerAlias <= 0 {
		return respErr
	}
	if len(args) == 0 {
		return respErr
	}
	ch := args[0]
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(args) == 1 {
		delete(d.aliases, ch)
		return ok(nil)
	}
	if _, exists := d.aliases[ch]; !exists && len(d.aliases) >= tydb.Settings.DebuggerAlias {
		return respErr
	}
	d.aliases[ch] = string(args[1:])
	return ok(nil)
}

func (d *Debugger) cmdMacro(args []byte) []byte {
	if tydb.Settings.DebuggerMacro <= 0 {
		return respErr
	}
	if len(args) == 0 {
		return respErr
	}
	ch := args[0]
	if len(args) == 1 {
		out, ok2 := d.runMacro(ch)
		if !ok2 {
			return respErr
		}
		return out
	}
	sep, body := args[1], args[2:]
	subs := bytes.Split(body, []byte{sep})

	d.mu.Lock()
	defer d.mu.Unlock()
	prevSize := 0
	if old, exists := d.macros[ch]; exists {
		prevSize = old.size
	}
	if d.macroSize-prevSize+len(body) > tydb.Settings.DebuggerMacro {
		return respErr
	}
	d.macroSize = d.macroSize - prevSize + len(body)
	d.macros[ch] = macro{body: subs, size: len(body)}
	return ok(nil)
}

// runMacro replays a defined macro's sub-commands through Process and
// concatenates their full responses, per spec.md §4.7 ("running a
// macro is equivalent to processing each sub-command, with its output
// concatenated").
func (d *Debugger) runMacro(ch byte) ([]byte, bool) {
	d.mu.Lock()
	m, exists := d.macros[ch]
	d.mu.Unlock()
	if !exists {
		return nil, false
	}
	var out bytes.Buffer
	for _, sub := range m.body {
		out.Write(d.Process(sub))
	}
	return out.Bytes(), true
}

func (d *Debugger) cmdStream(args []byte) []byte {
	if tydb.Settings.DebuggerStreams <= 0 || len(args) == 0 {
		return respErr
	}
	id := int(args[0] - '0')
	if id < 0 || id >= len(d.streams) {
		return respErr
	}
	n := -1
	if len(args) > 1 {
		v, err := hex.DecodeString(padEven(args[1:]))
		if err != nil {
			return respErr
		}
		n = int(bytesToUint(v))
	}
	d.mu.Lock()
	data := d.streams[id].drain(n)
	d.mu.Unlock()
	return ok([]byte(hex.EncodeToString(data)))
}

func padEven(b []byte) string {
	if len(b)%2 != 0 {
		return "0" + string(b)
	}
	return string(b)
}

func bytesToUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// cmdTrace binds a defined macro's output to a stream: subsequent
// Tick calls append that macro's replay output into the stream's ring.
func (d *Debugger) cmdTrace(args []byte) []byte {
	if !tydb.Settings.Trace() || len(args) < 2 {
		return respErr
	}
	macroCh, id := args[0], int(args[1]-'0')
	if id < 0 || id >= len(d.streams) {
		return respErr
	}
	d.mu.Lock()
	_, exists := d.macros[macroCh]
	if exists {
		d.traceBind[macroCh] = id
	}
	d.mu.Unlock()
	if !exists {
		return respErr
	}
	return ok(nil)
}

// Tick runs every macro currently bound to a stream and appends its
// output to that stream's ring. Callers drive this from whatever
// periodic source they have (out of scope here, per spec.md §1's
// exclusion of a poller/select layer).
func (d *Debugger) Tick() {
	d.mu.Lock()
	binds := make(map[byte]int, len(d.traceBind))
	for k, v := range d.traceBind {
		binds[k] = v
	}
	d.mu.Unlock()
	for macroCh, streamID := range binds {
		out, exists := d.runMacro(macroCh)
		if !exists {
			continue
		}
		d.mu.Lock()
		d.streams[streamID].push(out)
		d.mu.Unlock()
	}
}

func (d *Debugger) cmdIdentification() []byte {
	if !tydb.Settings.DebuggerIdentification {
		return respErr
	}
	return ok([]byte("tydb"))
}

func (d *Debugger) cmdVersion() []byte {
	return ok([]byte("1.0"))
}

// cmdReadMem parses "<hexaddr>+<hexlen>" and replies with the raw
// bytes at that address, full (not shortest) hex-encoded since this is
// a byte range, not a numeric value.
func (d *Debugger) cmdReadMem(args []byte) []byte {
	if !tydb.Settings.DebuggerReadMem {
		return respErr
	}
	plus := bytes.IndexByte(args, '+')
	if plus < 0 {
		return respErr
	}
	addr, err1 := parseHexUint(args[:plus])
	length, err2 := parseHexUint(args[plus+1:])
	if err1 != nil || err2 != nil {
		return respErr
	}
	data, err := d.store.ReadRaw(uint32(addr), uint32(length))
	if err != nil {
		return respErr
	}
	return ok([]byte(hex.EncodeToString(data)))
}

// cmdWriteMem parses "<hexaddr>+<hexbytes>" and writes the decoded
// bytes verbatim into the store buffer, bypassing type interpretation.
func (d *Debugger) cmdWriteMem(args []byte) []byte {
	if !tydb.Settings.DebuggerWriteMem {
		return respErr
	}
	plus := bytes.IndexByte(args, '+')
	if plus < 0 {
		return respErr
	}
	addr, err := parseHexUint(args[:plus])
	if err != nil {
		return respErr
	}
	hexData := args[plus+1:]
	if len(hexData)%2 != 0 {
		return respErr
	}
	data := make([]byte, hex.DecodedLen(len(hexData)))
	if _, err := hex.Decode(data, hexData); err != nil {
		return respErr
	}
	if err := d.store.WriteRaw(uint32(addr), data); err != nil {
		return respErr
	}
	return ok(nil)
}

func parseHexUint(b []byte) (uint64, error) {
	if len(b)%2 != 0 {
		b = append([]byte{'0'}, b...)
	}
	raw := make([]byte, hex.DecodedLen(len(b)))
	if _, err := hex.Decode(raw, b); err != nil {
		return 0, err
	}
	return bytesToUint(raw), nil
}
