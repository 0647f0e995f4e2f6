package erasure_code

import (
	"strings"

	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// Options read by the rs codec.
const (
	RSMatrixOption        = "matrix"
	RSMaxGoroutinesOption = "maxGoroutines"
	PreferNativeOption    = "preferNativeBuffer"

	rsVandermonde = "vandermonde"
	rsCauchy      = "cauchy"

	//GF(2^8): every unit needs a distinct non-zero field element
	rsMaxUnits = 255
)

type rsCodec struct{}

func (rsCodec) Name() string { return RSCodec }
func (rsCodec) MaxUnits() int { return rsMaxUnits }
func (rsCodec) SingleStep() bool { return true }

func (rsCodec) Validate(schema *Schema) error {
	if m, ok := schema.Option(RSMatrixOption); ok {
		switch strings.ToLower(m) {
		case rsVandermonde, rsCauchy:
		default:
			return errors.Wrapf(wire_errors.InvalidSchema, "unknown rs matrix %q", m)
		}
	}
	n, err := schema.IntOption(RSMaxGoroutinesOption, 0)
	if err != nil {
		return err
	}
	if n < 0 {
		return errors.Wrapf(wire_errors.InvalidSchema, "%s can not be negative", RSMaxGoroutinesOption)
	}
	return nil
}

func (rsCodec) PreferNativeBuffer(schema *Schema) bool {
	return schema.BoolOption(PreferNativeOption, false)
}

func (rsCodec) NewRawCodec(schema *Schema) (RawCodec, error) {
	var opts []reedsolomon.Option
	if m, ok := schema.Option(RSMatrixOption); ok && strings.ToLower(m) == rsCauchy {
		opts = append(opts, reedsolomon.WithCauchyMatrix())
	}
	if n, _ := schema.IntOption(RSMaxGoroutinesOption, 0); n > 0 {
		opts = append(opts, reedsolomon.WithMaxGoroutines(n))
	} else {
		opts = append(opts, reedsolomon.WithAutoGoroutines(schema.ChunkSize()))
	}
	enc, err := reedsolomon.New(schema.NumDataUnits(), schema.NumParityUnits(), opts...)
	if err != nil {
		return nil, errors.Wrapf(wire_errors.InvalidSchema, "reedsolomon: %v", err)
	}
	return &rsRawCodec{
		enc:          enc,
		dataShards:   schema.NumDataUnits(),
		parityShards: schema.NumParityUnits(),
	}, nil
}

// rsRawCodec owns the reedsolomon encoder, which holds the encoding matrix
// and a cache of inverted decode matrices.
type rsRawCodec struct {
	enc          reedsolomon.Encoder
	dataShards   int
	parityShards int
}

func (r *rsRawCodec) Encode(data [][]byte, parity [][]byte) error {
	if r.enc == nil {
		return errors.Wrap(wire_errors.NotInitialized, "rs codec released")
	}
	if len(data) != r.dataShards || len(parity) != r.parityShards {
		return errors.Wrapf(wire_errors.InvalidBuffers, "%d+%d != %d+%d",
			len(data), len(parity), r.dataShards, r.parityShards)
	}
	shards := make([][]byte, 0, r.dataShards+r.parityShards)
	shards = append(shards, data...)
	shards = append(shards, parity...)
	return r.enc.Encode(shards)
}

func (r *rsRawCodec) Decode(shards [][]byte, erasedIndexes []int, outputs [][]byte) error {
	if r.enc == nil {
		return errors.Wrap(wire_errors.NotInitialized, "rs codec released")
	}
	if len(shards) != r.dataShards+r.parityShards {
		return errors.Wrapf(wire_errors.InvalidBuffers, "len(shards) %d != %d",
			len(shards), r.dataShards+r.parityShards)
	}
	if len(erasedIndexes) != len(outputs) {
		return errors.Wrapf(wire_errors.InvalidBuffers, "%d erased indexes but %d outputs",
			len(erasedIndexes), len(outputs))
	}
	if len(erasedIndexes) == 0 {
		return nil
	}

	work := make([][]byte, len(shards))
	copy(work, shards)
	for i, idx := range erasedIndexes {
		//zero length with enough capacity makes reedsolomon rebuild in place
		work[idx] = outputs[i][:0]
	}
	if err := r.rebuild(work, erasedIndexes); err != nil {
		return err
	}
	for i, idx := range erasedIndexes {
		copy(outputs[i], work[idx])
	}
	return nil
}

// rebuild fills only the erased positions of work. Other nil positions are
// surviving blocks the step does not read and stay nil.
func (r *rsRawCodec) rebuild(work [][]byte, erasedIndexes []int) error {
	required := make([]bool, len(work))
	for _, idx := range erasedIndexes {
		required[idx] = true
	}
	return r.enc.ReconstructSome(work, required)
}

func (r *rsRawCodec) Release() {
	r.enc = nil
}
