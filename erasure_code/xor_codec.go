package erasure_code

import (
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
)

// XOR has no field to run out of; the limit only bounds stripe width.
const xorMaxUnits = 1 << 16

// xorCodec keeps a single parity unit equal to the XOR of all data units.
type xorCodec struct{}

func (xorCodec) Name() string { return XORCodec }
func (xorCodec) MaxUnits() int { return xorMaxUnits }
func (xorCodec) SingleStep() bool { return true }

func (xorCodec) Validate(schema *Schema) error {
	if schema.NumParityUnits() != 1 {
		return errors.Wrapf(wire_errors.InvalidSchema,
			"xor supports exactly one parity unit, got %d", schema.NumParityUnits())
	}
	return nil
}

func (xorCodec) PreferNativeBuffer(schema *Schema) bool {
	return schema.BoolOption(PreferNativeOption, false)
}

func (xorCodec) NewRawCodec(schema *Schema) (RawCodec, error) {
	return &xorRawCodec{dataUnits: schema.NumDataUnits()}, nil
}

type xorRawCodec struct {
	dataUnits int
	released  bool
}

func xorInto(dst []byte, srcs [][]byte) {
	for i := range dst {
		dst[i] = 0
	}
	for _, src := range srcs {
		if src == nil {
			continue
		}
		for i := range dst {
			dst[i] ^= src[i]
		}
	}
}

func (x *xorRawCodec) Encode(data [][]byte, parity [][]byte) error {
	if x.released {
		return errors.Wrap(wire_errors.NotInitialized, "xor codec released")
	}
	if len(data) != x.dataUnits || len(parity) != 1 {
		return errors.Wrapf(wire_errors.InvalidBuffers, "%d+%d != %d+1", len(data), len(parity), x.dataUnits)
	}
	xorInto(parity[0], data)
	return nil
}

func (x *xorRawCodec) Decode(shards [][]byte, erasedIndexes []int, outputs [][]byte) error {
	if x.released {
		return errors.Wrap(wire_errors.NotInitialized, "xor codec released")
	}
	if len(shards) != x.dataUnits+1 {
		return errors.Wrapf(wire_errors.InvalidBuffers, "len(shards) %d != %d", len(shards), x.dataUnits+1)
	}
	if len(erasedIndexes) != len(outputs) || len(outputs) > 1 {
		return errors.Wrapf(wire_errors.InvalidBuffers, "xor rebuilds at most one unit, asked for %d", len(outputs))
	}
	if len(outputs) == 0 {
		return nil
	}
	present := 0
	for i, s := range shards {
		if s != nil && i != erasedIndexes[0] {
			present++
		}
	}
	if present != x.dataUnits {
		return errors.Wrapf(wire_errors.InvalidBuffers, "xor needs %d present units, got %d", x.dataUnits, present)
	}
	srcs := make([][]byte, 0, x.dataUnits)
	for i, s := range shards {
		if i != erasedIndexes[0] {
			srcs = append(srcs, s)
		}
	}
	xorInto(outputs[0], srcs)
	return nil
}

func (x *xorRawCodec) Release() {
	x.released = true
}
