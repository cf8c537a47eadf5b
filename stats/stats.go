// Package stats tracks per-operation latency counters for the disk
// path, surfaced as a table for debug output.
//
// Grounded on util/stats/stats.go's Op/WriteTable (atomic count+nanos
// counters, rodaine/table rendering), carried over near verbatim since
// it is domain-independent ambient infrastructure; wired into
// synchdisk.SynchDisk (§4.2 read/write latency) rather than NFS's RPC
// handlers.
package stats

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rodaine/table"
)

// Op accumulates a call count and total latency for one named operation.
type Op struct {
	count uint32
	nanos uint64
}

// Record adds one sample whose duration is measured from start.
func (op *Op) Record(start time.Time) {
	atomic.AddUint32(&op.count, 1)
	dur := time.Since(start)
	atomic.AddUint64(&op.nanos, uint64(dur.Nanoseconds()))
}

// MicrosPerOp reports the mean latency in microseconds.
func (op Op) MicrosPerOp() float64 {
	if op.count == 0 {
		return 0
	}
	return float64(op.nanos) / float64(op.count) / 1e3
}

// WriteTable renders names/ops (and a summed total row) to w.
func WriteTable(names []string, ops []Op, w io.Writer) {
	if len(names) != len(ops) {
		panic("stats: WriteTable: mismatched names and ops lists")
	}
	tbl := table.New("op", "count", "us/op")
	tbl.WithWriter(w)

	var totalOp Op
	for i := range ops {
		loaded := Op{
			count: atomic.LoadUint32(&ops[i].count),
			nanos: atomic.LoadUint64(&ops[i].nanos),
		}
		totalOp.count += loaded.count
		totalOp.nanos += loaded.nanos
		tbl.AddRow(names[i], loaded.count, fmt.Sprintf("%0.1f", loaded.MicrosPerOp()))
	}
	tbl.AddRow("total", totalOp.count, fmt.Sprintf("%0.1f", totalOp.MicrosPerOp()))
	tbl.Print()
}

// FormatTable is WriteTable rendered to a string.
func FormatTable(names []string, ops []Op) string {
	buf := new(bytes.Buffer)
	WriteTable(names, ops, buf)
	return buf.String()
}
