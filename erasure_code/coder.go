package erasure_code

import (
	"strings"

	"github.com/journeymidnight/ecplanner/utils"
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/journeymidnight/ecplanner/xlog"
	"github.com/pkg/errors"
)

// ErasureCoder plans the encode or decode work for one block group at a
// time. For each group it works out which blocks to read, which to write and
// which positions are being produced, and returns them as a CodingStep the
// caller executes against its own I/O and the raw codec.
//
// Only one coding step per group is supported; codecs that need several are
// refused at initialization.
type ErasureCoder interface {
	// Initialize sets up the coder for the given unit counts and chunk size
	// with default codec options.
	Initialize(numDataUnits, numParityUnits, chunkSize int) error
	// InitializeWithSchema sets up the coder from a schema. The schema's
	// codec must match the coder's.
	InitializeWithSchema(schema *Schema) error

	NumDataUnits() (int, error)
	NumParityUnits() (int, error)
	ChunkSize() (int, error)

	// CalculateCoding plans the step for one group. It does not modify the
	// group and is safe to call from many goroutines at once.
	CalculateCoding(group *BlockGroup) (*CodingStep, error)

	// PreferNativeBuffer tells callers whether the codec would rather work
	// on off-heap buffers. It is only a hint.
	PreferNativeBuffer() bool

	// Release frees codec resources. It can be called any number of times;
	// the coder can not be used afterwards.
	Release()
}

type coderState int

const (
	stateUninitialized coderState = iota
	stateInitialized
	stateReleased
)

func (s coderState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	default:
		return "released"
	}
}

// Coder is the ErasureCoder for every registered codec family. The family
// decides limits and the raw codec; the block selection is shared.
//
// Initialize and Release must happen-before and happen-after all
// CalculateCoding calls respectively; the coder does not lock.
type Coder struct {
	codec  Codec
	state  coderState
	schema *Schema
	raw    RawCodec
}

var _ ErasureCoder = (*Coder)(nil)

// NewCoder returns an uninitialized coder for a registered codec.
func NewCoder(codec string) (*Coder, error) {
	c, err := LookupCodec(codec)
	if err != nil {
		return nil, err
	}
	return &Coder{codec: c}, nil
}

// NewCoderWithSchema looks up the schema's codec and initializes a coder
// with it.
func NewCoderWithSchema(schema *Schema) (*Coder, error) {
	if schema == nil {
		return nil, errors.Wrap(wire_errors.InvalidSchema, "nil schema")
	}
	coder, err := NewCoder(schema.Codec())
	if err != nil {
		return nil, err
	}
	if err = coder.InitializeWithSchema(schema); err != nil {
		return nil, err
	}
	return coder, nil
}

func (c *Coder) Initialize(numDataUnits, numParityUnits, chunkSize int) error {
	schema, err := NewSchema(c.codec.Name(), numDataUnits, numParityUnits, chunkSize, nil)
	if err != nil {
		return err
	}
	return c.InitializeWithSchema(schema)
}

func (c *Coder) InitializeWithSchema(schema *Schema) error {
	switch c.state {
	case stateInitialized:
		return errors.Wrapf(wire_errors.AlreadyInitialized, "coder %s", c.schema)
	case stateReleased:
		return errors.Wrap(wire_errors.NotInitialized, "coder already released")
	}
	if schema == nil {
		return errors.Wrap(wire_errors.InvalidSchema, "nil schema")
	}
	if schema.Codec() != strings.ToLower(c.codec.Name()) {
		return errors.Wrapf(wire_errors.InvalidSchema,
			"schema codec %s does not match coder codec %s", schema.Codec(), c.codec.Name())
	}
	if err := checkSchema(c.codec, schema); err != nil {
		return err
	}
	raw, err := c.codec.NewRawCodec(schema)
	if err != nil {
		return err
	}
	c.schema = schema
	c.raw = raw
	c.state = stateInitialized
	xlog.Logger.Debugf("coder initialized with %s", schema)
	return nil
}

func (c *Coder) checkInitialized() error {
	if c.state != stateInitialized {
		return errors.Wrapf(wire_errors.NotInitialized, "coder is %s", c.state)
	}
	return nil
}

func (c *Coder) NumDataUnits() (int, error) {
	if err := c.checkInitialized(); err != nil {
		return 0, err
	}
	return c.schema.NumDataUnits(), nil
}

func (c *Coder) NumParityUnits() (int, error) {
	if err := c.checkInitialized(); err != nil {
		return 0, err
	}
	return c.schema.NumParityUnits(), nil
}

func (c *Coder) ChunkSize() (int, error) {
	if err := c.checkInitialized(); err != nil {
		return 0, err
	}
	return c.schema.ChunkSize(), nil
}

// Schema returns the schema the coder was initialized with.
func (c *Coder) Schema() (*Schema, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	return c.schema, nil
}

// RawCodec returns the byte-level codec for executing steps.
func (c *Coder) RawCodec() (RawCodec, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	return c.raw, nil
}

func (c *Coder) PreferNativeBuffer() bool {
	if c.state != stateInitialized {
		return false
	}
	return c.codec.PreferNativeBuffer(c.schema)
}

func (c *Coder) Release() {
	if c.state == stateReleased {
		return
	}
	if c.raw != nil {
		c.raw.Release()
		c.raw = nil
	}
	c.state = stateReleased
	xlog.Logger.Debugf("coder %s released", c.codec.Name())
}

func (c *Coder) CalculateCoding(group *BlockGroup) (*CodingStep, error) {
	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	schema := c.schema
	d, p := schema.NumDataUnits(), schema.NumParityUnits()

	blocks, err := classify(group, d, p)
	if err != nil {
		return nil, err
	}

	var step *CodingStep
	if group.GenerateParity && len(blocks.erasedData) == 0 {
		step = newCodingStep(EncodeStep, schema, blocks.dataBlocks, blocks.parityBlocks)
	} else {
		if blocks.numErased() > p {
			return nil, errors.Wrapf(wire_errors.UnrecoverableStripe,
				"%d blocks erased %v, %s tolerates %d", blocks.numErased(), group.ErasedIndexes(), schema, p)
		}
		step = newCodingStep(DecodeStep, schema, selectInputs(blocks, d), blocks.erased())
	}

	if err = step.validate(); err != nil {
		return nil, err
	}
	xlog.Logger.Debugf("planned %s", step)
	return step, nil
}

// selectInputs takes d survivors, all surviving data units first and then
// parity units, each in ascending index order.
func selectInputs(blocks *classified, d int) []Block {
	inputs := make([]Block, 0, d)
	inputs = append(inputs, blocks.dataSurvivors...)
	need := d - len(inputs)
	if need > 0 {
		utils.AssertTruef(need <= len(blocks.paritySurvivors),
			"need %d parity inputs, %d survive", need, len(blocks.paritySurvivors))
		inputs = append(inputs, blocks.paritySurvivors[:need]...)
	}
	return inputs
}
