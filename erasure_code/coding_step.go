package erasure_code

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/journeymidnight/ecplanner/utils"
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
)

type StepKind int

const (
	EncodeStep StepKind = iota
	DecodeStep
)

func (k StepKind) String() string {
	switch k {
	case EncodeStep:
		return "encode"
	case DecodeStep:
		return "decode"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// CodingStep is the work needed for one stripe: read InputBlocks, run the
// raw codec with ErasedIndexes, write OutputBlocks. It keeps copies of the
// blocks it selected and no reference to the group it was planned from.
type CodingStep struct {
	kind           StepKind
	codec          string
	numDataUnits   int
	numParityUnits int
	chunkSize      int
	inputBlocks    []Block
	outputBlocks   []Block
	erasedIndexes  []int
}

func newCodingStep(kind StepKind, schema *Schema, inputs, outputs []Block) *CodingStep {
	erased := make([]int, len(outputs))
	for i, b := range outputs {
		erased[i] = b.Index
	}
	return &CodingStep{
		kind:           kind,
		codec:          schema.Codec(),
		numDataUnits:   schema.NumDataUnits(),
		numParityUnits: schema.NumParityUnits(),
		chunkSize:      schema.ChunkSize(),
		inputBlocks:    inputs,
		outputBlocks:   outputs,
		erasedIndexes:  erased,
	}
}

func (s *CodingStep) Kind() StepKind { return s.kind }
func (s *CodingStep) Codec() string { return s.codec }
func (s *CodingStep) NumDataUnits() int { return s.numDataUnits }
func (s *CodingStep) NumParityUnits() int { return s.numParityUnits }
func (s *CodingStep) NumAllUnits() int { return s.numDataUnits + s.numParityUnits }
func (s *CodingStep) ChunkSize() int { return s.chunkSize }

func (s *CodingStep) InputBlocks() []Block {
	ret := make([]Block, len(s.inputBlocks))
	copy(ret, s.inputBlocks)
	return ret
}

func (s *CodingStep) OutputBlocks() []Block {
	ret := make([]Block, len(s.outputBlocks))
	copy(ret, s.outputBlocks)
	return ret
}

func (s *CodingStep) ErasedIndexes() []int {
	ret := make([]int, len(s.erasedIndexes))
	copy(ret, s.erasedIndexes)
	return ret
}

func (s *CodingStep) InputIndexes() []int {
	ret := make([]int, len(s.inputBlocks))
	for i, b := range s.inputBlocks {
		ret[i] = b.Index
	}
	return ret
}

func (s *CodingStep) OutputIndexes() []int {
	ret := make([]int, len(s.outputBlocks))
	for i, b := range s.outputBlocks {
		ret[i] = b.Index
	}
	return ret
}

// ErasedBitmap is a stripe-wide mask with true at every erased index.
func (s *CodingStep) ErasedBitmap() []bool {
	ret := make([]bool, s.NumAllUnits())
	for _, idx := range s.erasedIndexes {
		ret[idx] = true
	}
	return ret
}

// Fingerprint hashes the selection. Two steps with equal fingerprints read
// and write the same blocks in the same order.
func (s *CodingStep) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	put := func(n int) {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	h.Write([]byte(s.codec))
	put(int(s.kind))
	put(s.numDataUnits)
	put(s.numParityUnits)
	put(len(s.inputBlocks))
	for _, b := range s.inputBlocks {
		put(b.Index)
	}
	put(len(s.outputBlocks))
	for _, b := range s.outputBlocks {
		put(b.Index)
	}
	return h.Sum64()
}

func (s *CodingStep) String() string {
	return fmt.Sprintf("%s %s-%d-%d inputs=[%s] outputs=[%s]",
		s.kind, s.codec, s.numDataUnits, s.numParityUnits,
		utils.FormatIndexes(s.InputIndexes()), utils.FormatIndexes(s.OutputIndexes()))
}

// validate checks the finished step before it is handed out. A failure here
// means the planner itself produced a bad selection.
func (s *CodingStep) validate() error {
	if len(s.inputBlocks) != s.numDataUnits {
		return errors.Wrapf(wire_errors.InvalidBlockGroup,
			"step has %d inputs, need %d", len(s.inputBlocks), s.numDataUnits)
	}
	if len(s.outputBlocks) != len(s.erasedIndexes) {
		return errors.Wrapf(wire_errors.InvalidBlockGroup,
			"step has %d outputs but %d erased indexes", len(s.outputBlocks), len(s.erasedIndexes))
	}
	if len(s.outputBlocks) > s.numParityUnits {
		return errors.Wrapf(wire_errors.UnrecoverableStripe,
			"step has %d outputs, at most %d can be produced", len(s.outputBlocks), s.numParityUnits)
	}
	seen := make([]bool, s.NumAllUnits())
	//data indexes all precede parity indexes, so data-first then ascending
	//within each role is the same as strictly ascending
	check := func(blocks []Block, what string) error {
		last := -1
		for _, b := range blocks {
			if b.Index < 0 || b.Index >= len(seen) {
				return errors.Wrapf(wire_errors.InvalidBlockGroup, "%s block %d out of range", what, b.Index)
			}
			if seen[b.Index] {
				return errors.Wrapf(wire_errors.InvalidBlockGroup, "block %d selected twice", b.Index)
			}
			seen[b.Index] = true
			if b.Index <= last {
				return errors.Wrapf(wire_errors.InvalidBlockGroup, "%s blocks out of order at %d", what, b.Index)
			}
			last = b.Index
		}
		return nil
	}
	if err := check(s.inputBlocks, "input"); err != nil {
		return err
	}
	if err := check(s.outputBlocks, "output"); err != nil {
		return err
	}
	for _, b := range s.inputBlocks {
		if b.Erased {
			return errors.Wrapf(wire_errors.InvalidBlockGroup, "erased block %d selected as input", b.Index)
		}
	}
	return nil
}
