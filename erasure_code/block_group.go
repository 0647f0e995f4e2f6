package erasure_code

import (
	"sort"

	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/pkg/errors"
)

type Role int

const (
	RoleData Role = iota
	RoleParity
)

func (r Role) String() string {
	if r == RoleData {
		return "data"
	}
	return "parity"
}

// Block is one unit of a stripe. It only carries identity and erasure
// state, never content.
type Block struct {
	Index  int
	Erased bool
}

// Role reports whether the block is a data or a parity unit of a stripe
// with numDataUnits data units.
func (b Block) Role(numDataUnits int) Role {
	if b.Index < numDataUnits {
		return RoleData
	}
	return RoleParity
}

// BlockGroup is the set of blocks of one stripe. GenerateParity asks the
// planner for an encode step; it is honoured only when every data block is
// present.
type BlockGroup struct {
	Blocks         []Block
	GenerateParity bool
}

// NewEncodingGroup returns a group with all data present and the parity
// units requested as outputs.
func NewEncodingGroup(numDataUnits, numParityUnits int) *BlockGroup {
	total := numDataUnits + numParityUnits
	g := &BlockGroup{
		Blocks:         make([]Block, total),
		GenerateParity: true,
	}
	for i := 0; i < total; i++ {
		g.Blocks[i] = Block{Index: i, Erased: i >= numDataUnits}
	}
	return g
}

// NewDecodingGroup returns a group where the listed indexes are erased.
// Indexes outside the stripe are kept as extra erased blocks, so planning
// such a group fails with InvalidBlockGroup.
func NewDecodingGroup(numDataUnits, numParityUnits int, erased ...int) *BlockGroup {
	total := numDataUnits + numParityUnits
	g := &BlockGroup{Blocks: make([]Block, total)}
	for i := 0; i < total; i++ {
		g.Blocks[i] = Block{Index: i}
	}
	for _, idx := range erased {
		if idx >= 0 && idx < total {
			g.Blocks[idx].Erased = true
			continue
		}
		g.Blocks = append(g.Blocks, Block{Index: idx, Erased: true})
	}
	return g
}

func (g *BlockGroup) Len() int {
	return len(g.Blocks)
}

// ErasedIndexes returns the indexes of erased blocks in ascending order.
func (g *BlockGroup) ErasedIndexes() []int {
	var ret []int
	for _, b := range g.Blocks {
		if b.Erased {
			ret = append(ret, b.Index)
		}
	}
	sort.Ints(ret)
	return ret
}

func (g *BlockGroup) Clone() *BlockGroup {
	blocks := make([]Block, len(g.Blocks))
	copy(blocks, g.Blocks)
	return &BlockGroup{Blocks: blocks, GenerateParity: g.GenerateParity}
}

// classified is the view of a validated group the planner works from. Each
// slice is in ascending index order.
type classified struct {
	dataSurvivors   []Block
	paritySurvivors []Block
	erasedData      []Block
	erasedParity    []Block
	dataBlocks      []Block
	parityBlocks    []Block
}

func (c *classified) numErased() int {
	return len(c.erasedData) + len(c.erasedParity)
}

// erased merges erased data and parity blocks, which are already in index
// order and data indexes all precede parity indexes.
func (c *classified) erased() []Block {
	ret := make([]Block, 0, c.numErased())
	ret = append(ret, c.erasedData...)
	return append(ret, c.erasedParity...)
}

// classify checks that the group covers exactly [0, numDataUnits+numParityUnits)
// once each and splits it by role and erasure state. The group itself is
// only read; blocks are copied into freshly allocated slices.
func classify(g *BlockGroup, numDataUnits, numParityUnits int) (*classified, error) {
	if g == nil {
		return nil, errors.Wrap(wire_errors.InvalidBlockGroup, "nil block group")
	}
	total := numDataUnits + numParityUnits
	if len(g.Blocks) != total {
		return nil, errors.Wrapf(wire_errors.InvalidBlockGroup,
			"group has %d blocks, schema needs %d", len(g.Blocks), total)
	}

	byIndex := make([]*Block, total)
	for i := range g.Blocks {
		b := g.Blocks[i]
		if b.Index < 0 || b.Index >= total {
			return nil, errors.Wrapf(wire_errors.InvalidBlockGroup,
				"block index %d out of range [0, %d)", b.Index, total)
		}
		if byIndex[b.Index] != nil {
			return nil, errors.Wrapf(wire_errors.InvalidBlockGroup, "duplicate block index %d", b.Index)
		}
		byIndex[b.Index] = &b
	}
	//len == total and no duplicates in range, so every slot is filled

	c := &classified{
		dataBlocks:   make([]Block, 0, numDataUnits),
		parityBlocks: make([]Block, 0, numParityUnits),
	}
	for _, b := range byIndex {
		switch b.Role(numDataUnits) {
		case RoleData:
			c.dataBlocks = append(c.dataBlocks, *b)
			if b.Erased {
				c.erasedData = append(c.erasedData, *b)
			} else {
				c.dataSurvivors = append(c.dataSurvivors, *b)
			}
		case RoleParity:
			c.parityBlocks = append(c.parityBlocks, *b)
			if b.Erased {
				c.erasedParity = append(c.erasedParity, *b)
			} else {
				c.paritySurvivors = append(c.paritySurvivors, *b)
			}
		}
	}
	return c, nil
}
