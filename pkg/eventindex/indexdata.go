package eventindex

import (
	"encoding/binary"

	"github.com/ethcache/fetcher/pkg/bitmask"
	"github.com/ethcache/fetcher/pkg/fetchererrors"
)

// IndexData is a BitMask anchored at startBlock, where bit i represents the
// chunk [startBlock + i*gridStep, startBlock + (i+1)*gridStep). A set bit
// means every event matching the owning index's (contract, name, filter)
// within that chunk has been fetched and persisted.
type IndexData struct {
	gridStep   int64
	startBlock int64
	hasStart   bool
	endBlock   int64
	hasEnd     bool
	mask       *bitmask.BitMask
}

// New returns an empty IndexData anchored to gridStep. It has no start block
// until the first SetRange call establishes one, and no end block unless
// SetEndBlock sets one.
func New(gridStep int64) *IndexData {
	return &IndexData{gridStep: gridStep, mask: bitmask.New(nil)}
}

// GridStep returns the grid granularity G this IndexData was constructed
// with.
func (d *IndexData) GridStep() int64 {
	return d.gridStep
}

// SnapToGrid returns block - (block mod G).
func (d *IndexData) SnapToGrid(block int64) int64 {
	return block - mod(block, d.gridStep)
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// SetRange marks [blockStart, blockEnd) as fetched (value=true) or not
// (value=false). Both bounds must be multiples of G, else
// fetchererrors.ErrAlignment is returned. If blockStart is
// below the current anchor, the anchor moves down to a multiple of 8*G and
// the mask is left-padded with zero bytes so existing bit positions still
// refer to the same chunks.
func (d *IndexData) SetRange(blockStart, blockEnd int64, value bool) error {
	if mod(blockStart, d.gridStep) != 0 || mod(blockEnd, d.gridStep) != 0 {
		return fetchererrors.ErrAlignment
	}
	d.ensureStart(blockStart)
	startBit := d.blockToBit(blockStart)
	endBit := d.blockToBit(blockEnd)
	if err := d.mask.SetRange(int(startBit), int(endBit), value); err != nil {
		return fetchererrors.ErrRange
	}
	return nil
}

// Get returns whether block has been recorded as fetched. It returns false
// for any block before the anchor, at or beyond EndBlock (if set), or past
// the end of the underlying mask.
func (d *IndexData) Get(block int64) bool {
	if !d.hasStart || block < d.startBlock {
		return false
	}
	if d.hasEnd && block >= d.endBlock {
		return false
	}
	bit := d.blockToBit(block)
	return d.mask.Get(int(bit))
}

// SetEndBlock records an optional upper bound past which Get always returns
// false, regardless of the underlying mask contents.
func (d *IndexData) SetEndBlock(end int64) {
	d.endBlock = end
	d.hasEnd = true
}

// StartBlock returns the current anchor and whether one has been
// established yet.
func (d *IndexData) StartBlock() (int64, bool) {
	return d.startBlock, d.hasStart
}

// EndBlock returns the current upper bound and whether one has been set.
func (d *IndexData) EndBlock() (int64, bool) {
	return d.endBlock, d.hasEnd
}

// Serialize encodes the IndexData as 4 bytes big-endian start_block, 4
// bytes big-endian end_block (0 meaning unbounded), then the mask bytes.
func (d *IndexData) Serialize() []byte {
	if !d.hasStart {
		return nil
	}
	out := make([]byte, 8+len(d.mask.Bytes()))
	binary.BigEndian.PutUint32(out[0:4], uint32(d.startBlock))
	if d.hasEnd {
		binary.BigEndian.PutUint32(out[4:8], uint32(d.endBlock))
	}
	copy(out[8:], d.mask.Bytes())
	return out
}

// Deserialize reconstructs an IndexData from the format Serialize produces.
// Data shorter than 8 bytes decodes to an empty IndexData with no anchor.
func Deserialize(gridStep int64, data []byte) *IndexData {
	d := New(gridStep)
	if len(data) < 8 {
		return d
	}
	start := int64(binary.BigEndian.Uint32(data[0:4]))
	end := int64(binary.BigEndian.Uint32(data[4:8]))
	d.startBlock = start
	d.hasStart = true
	if end != 0 {
		d.endBlock = end
		d.hasEnd = true
	}
	d.mask = bitmask.New(data[8:])
	return d
}

func (d *IndexData) ensureStart(block int64) {
	// Anchor snaps to a multiple of 8*G, so a whole byte of chunks is
	// addressable either side of any aligned SetRange call.
	byteGrid := 8 * d.gridStep
	snapped := block - mod(block, byteGrid)

	if !d.hasStart {
		d.startBlock = snapped
		d.hasStart = true
		return
	}
	if snapped >= d.startBlock {
		return
	}
	numBytesToPrepend := int((d.startBlock - snapped) / byteGrid)
	d.mask.PrependEmptyBytes(numBytesToPrepend)
	d.startBlock = snapped
}

func (d *IndexData) blockToBit(block int64) int64 {
	return (block - d.startBlock) / d.gridStep
}
