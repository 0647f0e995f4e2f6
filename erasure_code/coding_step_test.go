package erasure_code

import (
	"testing"

	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T, d, p int) *Schema {
	schema, err := NewSchema(RSCodec, d, p, 1024, nil)
	require.Nil(t, err)
	return schema
}

func blocks(erased bool, indexes ...int) []Block {
	ret := make([]Block, len(indexes))
	for i, idx := range indexes {
		ret[i] = Block{Index: idx, Erased: erased}
	}
	return ret
}

func TestStepValidate(t *testing.T) {
	schema := testSchema(t, 3, 2)

	good := newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 3), blocks(true, 1))
	require.Nil(t, good.validate())
	require.Equal(t, "decode rs-3-2 inputs=[0,2,3] outputs=[1]", good.String())

	for name, step := range map[string]*CodingStep{
		"too few inputs":  newCodingStep(DecodeStep, schema, blocks(false, 0, 2), blocks(true, 1)),
		"unordered":       newCodingStep(DecodeStep, schema, blocks(false, 3, 0, 2), blocks(true, 1)),
		"input twice":     newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 3), blocks(true, 3)),
		"erased input":    newCodingStep(DecodeStep, schema, blocks(true, 0, 2, 3), blocks(true, 1)),
		"out of range":    newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 7), blocks(true, 1)),
		"repeated output": newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 3), blocks(true, 1, 1)),
	} {
		require.True(t, errors.Is(step.validate(), wire_errors.InvalidBlockGroup), name)
	}

	tooMany := newCodingStep(DecodeStep, schema, blocks(false, 0, 1, 2), blocks(true, 3, 4, 5))
	require.True(t, errors.Is(tooMany.validate(), wire_errors.UnrecoverableStripe))
}

func TestStepCopies(t *testing.T) {
	step := newCodingStep(EncodeStep, testSchema(t, 2, 1), blocks(false, 0, 1), blocks(true, 2))
	in := step.InputBlocks()
	in[0].Index = 9
	out := step.OutputBlocks()
	out[0].Erased = false
	erased := step.ErasedIndexes()
	erased[0] = 0

	require.Equal(t, []int{0, 1}, step.InputIndexes())
	require.True(t, step.OutputBlocks()[0].Erased)
	require.Equal(t, []int{2}, step.ErasedIndexes())
	require.Equal(t, "encode", step.Kind().String())
	require.Equal(t, "StepKind(7)", StepKind(7).String())
}

func TestFingerprint(t *testing.T) {
	schema := testSchema(t, 3, 2)
	a := newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 3), blocks(true, 1))
	b := newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 3), blocks(true, 1))
	c := newCodingStep(DecodeStep, schema, blocks(false, 0, 2, 4), blocks(true, 1))
	d := newCodingStep(EncodeStep, schema, blocks(false, 0, 2, 3), blocks(true, 1))
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}
