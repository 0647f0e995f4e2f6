package erasure_code

import (
	"fmt"
	"sync"
	"testing"

	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/journeymidnight/ecplanner/xlog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

func init() {
	xlog.InitLog([]string{"test.log"}, zap.DebugLevel)
}

type CoderTestSuite struct {
	suite.Suite
	coder *Coder
}

func (s *CoderTestSuite) SetupTest() {
	coder, err := NewCoder(RSCodec)
	s.Require().Nil(err)
	s.Require().Nil(coder.Initialize(6, 3, 64<<10))
	s.coder = coder
}

func (s *CoderTestSuite) TearDownTest() {
	s.coder.Release()
}

func (s *CoderTestSuite) TestAccessors() {
	d, err := s.coder.NumDataUnits()
	s.Require().Nil(err)
	s.Equal(6, d)
	p, err := s.coder.NumParityUnits()
	s.Require().Nil(err)
	s.Equal(3, p)
	c, err := s.coder.ChunkSize()
	s.Require().Nil(err)
	s.Equal(64<<10, c)
	s.False(s.coder.PreferNativeBuffer())
}

func (s *CoderTestSuite) TestEncodeStep() {
	step, err := s.coder.CalculateCoding(NewEncodingGroup(6, 3))
	s.Require().Nil(err)
	s.Equal(EncodeStep, step.Kind())
	s.Equal([]int{0, 1, 2, 3, 4, 5}, step.InputIndexes())
	s.Equal([]int{6, 7, 8}, step.OutputIndexes())
	s.Equal([]int{6, 7, 8}, step.ErasedIndexes())
	s.Equal(RSCodec, step.Codec())
	s.Equal(64<<10, step.ChunkSize())
}

func (s *CoderTestSuite) TestEncodeWithNothingErased() {
	//parity present but explicitly requested again
	group := NewDecodingGroup(6, 3)
	group.GenerateParity = true
	step, err := s.coder.CalculateCoding(group)
	s.Require().Nil(err)
	s.Equal(EncodeStep, step.Kind())
	s.Len(step.InputBlocks(), 6)
	s.Equal([]int{6, 7, 8}, step.ErasedIndexes())
}

func (s *CoderTestSuite) TestEncodeRequestWithMissingData() {
	group := NewEncodingGroup(6, 3)
	group.Blocks[2].Erased = true
	//3 parity + 1 data erased is more than 3
	_, err := s.coder.CalculateCoding(group)
	s.True(errors.Is(err, wire_errors.UnrecoverableStripe), "%v", err)

	group = NewDecodingGroup(6, 3, 2)
	group.GenerateParity = true
	step, err := s.coder.CalculateCoding(group)
	s.Require().Nil(err)
	s.Equal(DecodeStep, step.Kind())
	s.Equal([]int{2}, step.OutputIndexes())
}

func (s *CoderTestSuite) TestTieBreak() {
	step, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3, 1, 6))
	s.Require().Nil(err)
	s.Equal(DecodeStep, step.Kind())
	s.Equal([]int{0, 2, 3, 4, 5, 7}, step.InputIndexes())
	s.Equal([]int{1, 6}, step.OutputIndexes())
	s.Equal([]int{1, 6}, step.ErasedIndexes())
	s.Equal([]bool{false, true, false, false, false, false, true, false, false}, step.ErasedBitmap())
}

func (s *CoderTestSuite) TestParityOnlyErasure() {
	step, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3, 8))
	s.Require().Nil(err)
	s.Equal([]int{0, 1, 2, 3, 4, 5}, step.InputIndexes())
	s.Equal([]int{8}, step.OutputIndexes())
}

func (s *CoderTestSuite) TestNoErasure() {
	step, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3))
	s.Require().Nil(err)
	s.Equal(DecodeStep, step.Kind())
	s.Len(step.InputBlocks(), 6)
	s.Len(step.OutputBlocks(), 0)
	s.Len(step.ErasedIndexes(), 0)
}

func (s *CoderTestSuite) TestUnrecoverable() {
	step, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3, 0, 1, 2, 3))
	s.Nil(step)
	s.True(errors.Is(err, wire_errors.UnrecoverableStripe), "%v", err)
	s.False(errors.Is(err, wire_errors.InvalidBlockGroup))
}

func (s *CoderTestSuite) TestInvalidGroups() {
	cases := map[string]*BlockGroup{
		"nil":       nil,
		"short":     {Blocks: NewDecodingGroup(6, 2).Blocks},
		"long":      {Blocks: NewDecodingGroup(6, 4).Blocks},
		"duplicate": {Blocks: []Block{{0, false}, {1, false}, {2, false}, {3, false}, {4, false}, {5, false}, {6, false}, {7, false}, {7, true}}},
		"gap":       {Blocks: []Block{{0, false}, {1, false}, {2, false}, {3, false}, {4, false}, {5, false}, {6, false}, {7, false}, {9, false}}},
		"negative":  {Blocks: []Block{{-1, false}, {1, false}, {2, false}, {3, false}, {4, false}, {5, false}, {6, false}, {7, false}, {8, false}}},
	}
	for name, group := range cases {
		step, err := s.coder.CalculateCoding(group)
		s.Nil(step, name)
		s.True(errors.Is(err, wire_errors.InvalidBlockGroup), "%s: %v", name, err)
	}
}

func (s *CoderTestSuite) TestUnorderedGroup() {
	//order of the caller's slice does not matter, only the index set
	group := NewDecodingGroup(6, 3, 1, 6)
	for i, j := 0, len(group.Blocks)-1; i < j; i, j = i+1, j-1 {
		group.Blocks[i], group.Blocks[j] = group.Blocks[j], group.Blocks[i]
	}
	step, err := s.coder.CalculateCoding(group)
	s.Require().Nil(err)
	s.Equal([]int{0, 2, 3, 4, 5, 7}, step.InputIndexes())
	s.Equal([]int{1, 6}, step.OutputIndexes())
}

func (s *CoderTestSuite) TestGroupNotModified() {
	group := NewDecodingGroup(6, 3, 1, 6)
	before := group.Clone()
	step, err := s.coder.CalculateCoding(group)
	s.Require().Nil(err)
	s.Equal(before, group)

	//the step does not alias the group
	group.Blocks[0].Erased = true
	s.False(step.InputBlocks()[0].Erased)
}

func (s *CoderTestSuite) TestDeterminism() {
	a, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3, 4, 2, 8))
	s.Require().Nil(err)
	b, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3, 8, 4, 2))
	s.Require().Nil(err)
	s.Equal(a.InputBlocks(), b.InputBlocks())
	s.Equal(a.OutputBlocks(), b.OutputBlocks())
	s.Equal(a.Fingerprint(), b.Fingerprint())
	s.Equal(a.String(), b.String())
}

func (s *CoderTestSuite) TestConcurrentPlanning() {
	var wg sync.WaitGroup
	steps := make([]*CodingStep, 64)
	errs := make([]error, 64)
	for i := range steps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			steps[i], errs[i] = s.coder.CalculateCoding(NewDecodingGroup(6, 3, i%9, (i+4)%9))
		}(i)
	}
	wg.Wait()
	for i := range steps {
		s.Require().Nil(errs[i])
		want, err := s.coder.CalculateCoding(NewDecodingGroup(6, 3, i%9, (i+4)%9))
		s.Require().Nil(err)
		s.Equal(want.Fingerprint(), steps[i].Fingerprint())
	}
}

func (s *CoderTestSuite) TestReinitialize() {
	err := s.coder.Initialize(6, 3, 1024)
	s.True(errors.Is(err, wire_errors.AlreadyInitialized), "%v", err)
}

func TestCoderSuite(t *testing.T) {
	suite.Run(t, new(CoderTestSuite))
}

// every erasure pattern of a d+p stripe
func forEachPattern(d, p int, f func(erased []int)) {
	total := d + p
	for mask := 0; mask < 1<<uint(total); mask++ {
		var erased []int
		for i := 0; i < total; i++ {
			if mask&(1<<uint(i)) != 0 {
				erased = append(erased, i)
			}
		}
		f(erased)
	}
}

func TestAllErasurePatterns(t *testing.T) {
	for _, shape := range [][2]int{{6, 3}, {3, 2}, {4, 1}, {10, 4}} {
		d, p := shape[0], shape[1]
		t.Run(fmt.Sprintf("%d+%d", d, p), func(t *testing.T) {
			coder, err := NewCoder(RSCodec)
			require.Nil(t, err)
			require.Nil(t, coder.Initialize(d, p, 1024))
			defer coder.Release()

			forEachPattern(d, p, func(erased []int) {
				group := NewDecodingGroup(d, p, erased...)
				step, err := coder.CalculateCoding(group)
				if len(erased) > p {
					require.Nil(t, step)
					require.True(t, errors.Is(err, wire_errors.UnrecoverableStripe), "%v %v", erased, err)
					return
				}
				require.Nil(t, err, "%v", erased)
				require.Len(t, step.InputBlocks(), d)
				require.Len(t, step.OutputBlocks(), len(erased))
				require.Equal(t, erased, nilIfEmpty(step.ErasedIndexes()))

				isErased := make(map[int]bool)
				for _, idx := range erased {
					isErased[idx] = true
				}
				for _, b := range step.OutputBlocks() {
					require.True(t, group.Blocks[b.Index].Erased)
				}
				//every surviving data unit is read before any parity unit
				survivingData := 0
				for i := 0; i < d; i++ {
					if !isErased[i] {
						survivingData++
					}
				}
				inputs := step.InputIndexes()
				for i, idx := range inputs {
					require.False(t, isErased[idx])
					require.Equal(t, i < survivingData, idx < d, "%v %v", erased, inputs)
					if i > 0 {
						require.Less(t, inputs[i-1], idx)
					}
				}
				//and the parity units read are the lowest surviving ones
				next := d
				for _, idx := range inputs[survivingData:] {
					for isErased[next] {
						next++
					}
					require.Equal(t, next, idx)
					next++
				}
			})
		})
	}
}

func nilIfEmpty(a []int) []int {
	if len(a) == 0 {
		return nil
	}
	return a
}

func TestEncodeProperty(t *testing.T) {
	for d := 1; d <= 12; d++ {
		for p := 1; p <= 4; p++ {
			coder, err := NewCoder(RSCodec)
			require.Nil(t, err)
			require.Nil(t, coder.Initialize(d, p, 4096))

			group := NewDecodingGroup(d, p)
			group.GenerateParity = true
			step, err := coder.CalculateCoding(group)
			require.Nil(t, err)
			require.Len(t, step.InputBlocks(), d)
			require.Len(t, step.OutputBlocks(), p)
			want := make([]int, p)
			for i := range want {
				want[i] = d + i
			}
			require.Equal(t, want, step.ErasedIndexes())
			coder.Release()
		}
	}
}

func TestAllErased(t *testing.T) {
	coder, err := NewCoder(RSCodec)
	require.Nil(t, err)
	require.Nil(t, coder.Initialize(3, 2, 1024))
	defer coder.Release()

	step, err := coder.CalculateCoding(NewDecodingGroup(3, 2, 0, 1, 2, 3, 4))
	require.Nil(t, step)
	require.True(t, errors.Is(err, wire_errors.UnrecoverableStripe))
	code, _ := wire_errors.ConvertToCode(err)
	require.Equal(t, wire_errors.Code_UnrecoverableStripe, code)
}

func TestLifecycle(t *testing.T) {
	coder, err := NewCoder(RSCodec)
	require.Nil(t, err)

	_, err = coder.CalculateCoding(NewEncodingGroup(6, 3))
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	_, err = coder.NumDataUnits()
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	_, err = coder.NumParityUnits()
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	_, err = coder.ChunkSize()
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	_, err = coder.RawCodec()
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	require.False(t, coder.PreferNativeBuffer())

	require.Nil(t, coder.Initialize(6, 3, 1024))
	_, err = coder.CalculateCoding(NewEncodingGroup(6, 3))
	require.Nil(t, err)

	coder.Release()
	coder.Release()
	_, err = coder.CalculateCoding(NewEncodingGroup(6, 3))
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	_, err = coder.NumDataUnits()
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
	_, err = coder.RawCodec()
	require.True(t, errors.Is(err, wire_errors.NotInitialized))

	//released is terminal
	err = coder.Initialize(6, 3, 1024)
	require.True(t, errors.Is(err, wire_errors.NotInitialized))
}

func TestInitializeInvalidSchema(t *testing.T) {
	cases := []struct {
		codec   string
		d, p, c int
	}{
		{RSCodec, 0, 3, 1024},
		{RSCodec, 6, 0, 1024},
		{RSCodec, -1, 3, 1024},
		{RSCodec, 6, 3, 0},
		{RSCodec, 200, 56, 1024},
		{XORCodec, 6, 2, 1024},
	}
	for _, c := range cases {
		coder, err := NewCoder(c.codec)
		require.Nil(t, err)
		err = coder.Initialize(c.d, c.p, c.c)
		require.True(t, errors.Is(err, wire_errors.InvalidSchema), "%+v: %v", c, err)
		_, err = coder.CalculateCoding(NewEncodingGroup(6, 3))
		require.True(t, errors.Is(err, wire_errors.NotInitialized))
	}

	coder, err := NewCoder(RSCodec)
	require.Nil(t, err)
	require.Nil(t, coder.Initialize(200, 55, 1024))
	coder.Release()
}

func TestInitializeWithSchema(t *testing.T) {
	schema, err := NewSchema("RS", 6, 3, 1<<20, map[string]string{PreferNativeOption: "true"})
	require.Nil(t, err)

	coder, err := NewCoderWithSchema(schema)
	require.Nil(t, err)
	defer coder.Release()
	require.True(t, coder.PreferNativeBuffer())
	got, err := coder.Schema()
	require.Nil(t, err)
	require.Equal(t, schema, got)

	xor, err := NewCoder(XORCodec)
	require.Nil(t, err)
	err = xor.InitializeWithSchema(schema)
	require.True(t, errors.Is(err, wire_errors.InvalidSchema))
	err = xor.InitializeWithSchema(nil)
	require.True(t, errors.Is(err, wire_errors.InvalidSchema))

	_, err = NewCoderWithSchema(nil)
	require.True(t, errors.Is(err, wire_errors.InvalidSchema))
}

func TestUnknownCodec(t *testing.T) {
	_, err := NewCoder("lrc")
	require.True(t, errors.Is(err, wire_errors.UnknownCodec))
}
