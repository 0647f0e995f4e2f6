package erasure_code

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
)

const (
	RSCodec  = "rs"
	XORCodec = "xor"
)

// Codec is the capability surface of one codec family. A Coder asks it to
// vet a schema and to build the raw byte-level codec the caller runs steps
// with.
type Codec interface {
	Name() string
	// MaxUnits is the largest numDataUnits+numParityUnits the codec supports.
	MaxUnits() int
	// SingleStep reports whether every encode or decode fits in one
	// CodingStep. Coders refuse codecs that need more.
	SingleStep() bool
	// Validate applies codec specific rules beyond MaxUnits.
	Validate(schema *Schema) error
	NewRawCodec(schema *Schema) (RawCodec, error)
	PreferNativeBuffer(schema *Schema) bool
}

// RawCodec does the byte arithmetic for a step. Every buffer has the same
// length.
type RawCodec interface {
	// Encode computes parity from data.
	Encode(data [][]byte, parity [][]byte) error
	// Decode rebuilds erasedIndexes into outputs. shards spans the whole
	// stripe; positions that are not inputs of the step are nil.
	Decode(shards [][]byte, erasedIndexes []int, outputs [][]byte) error
	// Release drops precomputed state. The codec is unusable afterwards.
	Release()
}

var (
	codecsLock sync.RWMutex
	codecs     = make(map[string]Codec)
)

func init() {
	RegisterCodec(rsCodec{})
	RegisterCodec(xorCodec{})
}

// RegisterCodec makes a codec family available to NewCoder under its
// lower-cased name. Registering a name twice panics.
func RegisterCodec(c Codec) {
	codecsLock.Lock()
	defer codecsLock.Unlock()
	name := strings.ToLower(c.Name())
	if _, ok := codecs[name]; ok {
		panic(fmt.Sprintf("codec %s already registered", name))
	}
	codecs[name] = c
}

func LookupCodec(name string) (Codec, error) {
	codecsLock.RLock()
	defer codecsLock.RUnlock()
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrapf(wire_errors.UnknownCodec, "codec %q", name)
	}
	return c, nil
}

// RegisteredCodecs lists codec names in sorted order.
func RegisteredCodecs() []string {
	codecsLock.RLock()
	defer codecsLock.RUnlock()
	ret := make([]string, 0, len(codecs))
	for name := range codecs {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// checkSchema holds the rules every codec shares.
func checkSchema(c Codec, schema *Schema) error {
	if !c.SingleStep() {
		return errors.Wrapf(wire_errors.InvalidSchema,
			"codec %s needs multiple coding steps, only single step codecs are supported", c.Name())
	}
	if schema.NumAllUnits() > c.MaxUnits() {
		return errors.Wrapf(wire_errors.InvalidSchema,
			"%d+%d units exceed the %d supported by codec %s",
			schema.NumDataUnits(), schema.NumParityUnits(), c.MaxUnits(), c.Name())
	}
	return c.Validate(schema)
}
