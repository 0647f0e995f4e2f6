package erasure_code

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
)

// Keys understood by ParseSchema. Every other key is kept as a codec option.
const (
	CodecKey          = "codec"
	NumDataUnitsKey   = "numDataUnits"
	NumParityUnitsKey = "numParityUnits"
	ChunkSizeKey      = "chunkSize"

	DefaultChunkSize = 1024 << 10
)

// Schema describes one coding scheme. It is immutable once built and can be
// shared by any number of coders.
type Schema struct {
	codec          string
	numDataUnits   int
	numParityUnits int
	chunkSize      int
	options        map[string]string
}

// NewSchema validates the unit counts and chunk size and copies options.
// Codec specific limits are checked when a coder is initialized with it.
func NewSchema(codec string, numDataUnits, numParityUnits, chunkSize int, options map[string]string) (*Schema, error) {
	codec = strings.ToLower(strings.TrimSpace(codec))
	if len(codec) == 0 {
		return nil, errors.Wrap(wire_errors.InvalidSchema, "codec can not be empty")
	}
	if numDataUnits <= 0 || numParityUnits <= 0 {
		return nil, errors.Wrapf(wire_errors.InvalidSchema,
			"numDataUnits(%d) and numParityUnits(%d) must be positive", numDataUnits, numParityUnits)
	}
	if chunkSize <= 0 {
		return nil, errors.Wrapf(wire_errors.InvalidSchema, "chunkSize(%d) must be positive", chunkSize)
	}
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[k] = v
	}
	return &Schema{
		codec:          codec,
		numDataUnits:   numDataUnits,
		numParityUnits: numParityUnits,
		chunkSize:      chunkSize,
		options:        opts,
	}, nil
}

// ParseSchema builds a schema from a flat option map, the way schemas are
// stored in configuration. chunkSize is optional.
func ParseSchema(allOptions map[string]string) (*Schema, error) {
	codec, ok := allOptions[CodecKey]
	if !ok {
		return nil, errors.Wrap(wire_errors.InvalidSchema, "no codec option")
	}
	getInt := func(key string, def int, required bool) (int, error) {
		s, ok := allOptions[key]
		if !ok {
			if required {
				return 0, errors.Wrapf(wire_errors.InvalidSchema, "no %s option", key)
			}
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, errors.Wrapf(wire_errors.InvalidSchema, "option %s=%q is not a number", key, s)
		}
		return n, nil
	}

	numData, err := getInt(NumDataUnitsKey, 0, true)
	if err != nil {
		return nil, err
	}
	numParity, err := getInt(NumParityUnitsKey, 0, true)
	if err != nil {
		return nil, err
	}
	chunkSize, err := getInt(ChunkSizeKey, DefaultChunkSize, false)
	if err != nil {
		return nil, err
	}

	extra := make(map[string]string)
	for k, v := range allOptions {
		switch k {
		case CodecKey, NumDataUnitsKey, NumParityUnitsKey, ChunkSizeKey:
		default:
			extra[k] = v
		}
	}
	return NewSchema(codec, numData, numParity, chunkSize, extra)
}

func (s *Schema) Codec() string { return s.codec }
func (s *Schema) NumDataUnits() int { return s.numDataUnits }
func (s *Schema) NumParityUnits() int { return s.numParityUnits }
func (s *Schema) NumAllUnits() int { return s.numDataUnits + s.numParityUnits }
func (s *Schema) ChunkSize() int { return s.chunkSize }

// Option returns a codec option.
func (s *Schema) Option(key string) (string, bool) {
	v, ok := s.options[key]
	return v, ok
}

// BoolOption reads a boolean codec option, returning def when it is absent
// or malformed.
func (s *Schema) BoolOption(key string, def bool) bool {
	v, ok := s.options[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// IntOption reads an integer codec option.
func (s *Schema) IntOption(key string, def int) (int, error) {
	v, ok := s.options[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, errors.Wrapf(wire_errors.InvalidSchema, "option %s=%q is not a number", key, v)
	}
	return n, nil
}

// Options returns a copy of the codec options.
func (s *Schema) Options() map[string]string {
	ret := make(map[string]string, len(s.options))
	for k, v := range s.options {
		ret[k] = v
	}
	return ret
}

// String renders names like RS-6-3-1024k.
func (s *Schema) String() string {
	chunk := strconv.Itoa(s.chunkSize)
	if s.chunkSize%1024 == 0 {
		chunk = fmt.Sprintf("%dk", s.chunkSize/1024)
	}
	name := fmt.Sprintf("%s-%d-%d-%s", strings.ToUpper(s.codec), s.numDataUnits, s.numParityUnits, chunk)
	if len(s.options) == 0 {
		return name
	}
	keys := make([]string, 0, len(s.options))
	for k := range s.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + s.options[k]
	}
	return name + "[" + strings.Join(parts, ",") + "]"
}
