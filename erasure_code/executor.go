package erasure_code

import (
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
)

// ExecuteStep runs a planned step through raw. inputs[i] holds the content
// of step.InputBlocks()[i] and outputs[i] receives step.OutputBlocks()[i].
// All buffers must have the same, non-zero length.
func ExecuteStep(step *CodingStep, raw RawCodec, inputs, outputs [][]byte) error {
	if step == nil || raw == nil {
		return errors.Wrap(wire_errors.InvalidBuffers, "nil step or codec")
	}
	if len(inputs) != len(step.inputBlocks) {
		return errors.Wrapf(wire_errors.InvalidBuffers, "got %d inputs, step reads %d", len(inputs), len(step.inputBlocks))
	}
	if len(outputs) != len(step.outputBlocks) {
		return errors.Wrapf(wire_errors.InvalidBuffers, "got %d outputs, step writes %d", len(outputs), len(step.outputBlocks))
	}
	size := -1
	for _, bufs := range [][][]byte{inputs, outputs} {
		for _, b := range bufs {
			if size == -1 {
				size = len(b)
			}
			if len(b) == 0 || len(b) != size {
				return errors.Wrapf(wire_errors.InvalidBuffers, "buffer of %d bytes, want %d", len(b), size)
			}
		}
	}

	switch step.kind {
	case EncodeStep:
		return raw.Encode(inputs, outputs)
	case DecodeStep:
		shards := make([][]byte, step.NumAllUnits())
		for i, b := range step.inputBlocks {
			shards[b.Index] = inputs[i]
		}
		return raw.Decode(shards, step.ErasedIndexes(), outputs)
	default:
		return errors.Errorf("unknown step kind %s", step.kind)
	}
}

// NewChunks allocates n zeroed buffers of size bytes.
func NewChunks(n, size int) [][]byte {
	buf := make([]byte, n*size)
	ret := make([][]byte, n)
	for i := range ret {
		ret[i] = buf[i*size : (i+1)*size : (i+1)*size]
	}
	return ret
}
