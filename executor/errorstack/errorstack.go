// Package errorstack normalizes the heterogeneous execution-failure
// shapes a VM can produce (entry-point call frames, VM exceptions,
// Cairo 1 revert summaries, post-execution fee-check failures) into a
// single ordered types.ErrorStack.
package errorstack

import (
	"fmt"

	"github.com/starksyncd/starksyncd/internal/types"
)

// Segment is one raw frame as produced by the execution layer, before
// normalization into types.Frame.
type Segment interface {
	isSegment()
}

// EntryPointSegment is a call frame from the VM's execution stack.
type EntryPointSegment struct {
	StorageAddress types.ContractAddress
	ClassHash      types.ClassHash
	Selector       *types.EntryPoint
}

func (EntryPointSegment) isSegment() {}

// VMExceptionSegment is a raw VM exception rendered to text upstream.
type VMExceptionSegment struct{ Text string }

func (VMExceptionSegment) isSegment() {}

// StringSegment is an already free-form reason.
type StringSegment struct{ Text string }

func (StringSegment) isSegment() {}

// Cairo1RevertSummarySegment nests its own call stack plus the final
// panic return data.
type Cairo1RevertSummarySegment struct {
	Stack        []Cairo1RevertFrame
	LastRetdata  []types.EntryPoint
}

func (Cairo1RevertSummarySegment) isSegment() {}

// Cairo1RevertFrame is one frame of a Cairo 1 revert, whose class hash
// is sometimes absent from the source trace.
//
// FIXME: what should a frame with no class hash project to? Preserved
// from the source trace as a zero-valued ClassHash rather than decided
// here; this is an open question for the collaborator owning VM error
// shapes, not something this projection resolves.
type Cairo1RevertFrame struct {
	ContractAddress types.ContractAddress
	ClassHash       *types.ClassHash
	Selector        types.EntryPoint
}

// FromSegments projects a raw segment list (an entry-point call trace,
// possibly ending in a VM exception or Cairo 1 revert) into a types.ErrorStack.
func FromSegments(segments []Segment) types.ErrorStack {
	stack := make(types.ErrorStack, 0, len(segments))
	for _, seg := range segments {
		stack = append(stack, projectSegment(seg)...)
	}
	return stack
}

func projectSegment(seg Segment) types.ErrorStack {
	switch s := seg.(type) {
	case EntryPointSegment:
		return types.ErrorStack{types.CallFrame{
			StorageAddress: s.StorageAddress,
			ClassHash:      s.ClassHash,
			Selector:       s.Selector,
		}}
	case VMExceptionSegment:
		return types.ErrorStack{types.StringFrame{Reason: s.Text}}
	case StringSegment:
		return types.ErrorStack{types.StringFrame{Reason: s.Text}}
	case Cairo1RevertSummarySegment:
		return fromCairo1RevertSummary(s)
	default:
		return types.ErrorStack{types.StringFrame{Reason: fmt.Sprintf("unrecognized segment %T", seg)}}
	}
}

// fromCairo1RevertSummary appends the revert's call stack followed by a
// string frame holding the formatted panic data, mirroring the
// source revert-summary-to-error-stack conversion exactly.
func fromCairo1RevertSummary(s Cairo1RevertSummarySegment) types.ErrorStack {
	stack := make(types.ErrorStack, 0, len(s.Stack)+1)
	for _, frame := range s.Stack {
		var classHash types.ClassHash
		if frame.ClassHash != nil {
			classHash = *frame.ClassHash
		}
		selector := frame.Selector
		stack = append(stack, types.CallFrame{
			StorageAddress: frame.ContractAddress,
			ClassHash:      classHash,
			Selector:       &selector,
		})
	}
	return append(stack, types.StringFrame{Reason: formatPanicData(s.LastRetdata)})
}

// formatPanicData renders Cairo 1 panic return data the way a
// revert-data formatter does: each felt as hex, joined for readability.
func formatPanicData(retdata []types.EntryPoint) string {
	if len(retdata) == 0 {
		return "panic"
	}
	out := "panic: ["
	for i, f := range retdata {
		if i > 0 {
			out += ", "
		}
		out += f.String()
	}
	return out + "]"
}

// FromPostExecutionFeeCheck projects a post-execution fee-check failure
// (which never has a call stack, only a message) into a single-frame
// ErrorStack.
func FromPostExecutionFeeCheck(reason string) types.ErrorStack {
	return types.ErrorStack{types.StringFrame{Reason: reason}}
}
