package isisgo

import (
	"fmt"
	"io"
	"os"
)

// XRFStatus is the status derived from one XRF entry's packed word, per
// spec §3: active when block>0, logically deleted when block<0 and
// offset>0, physically deleted when block==-1 and offset==0, inexistent
// when block==0 and offset==0, invalid for any other block==0 case.
type XRFStatus int

const (
	XRFActive XRFStatus = iota
	XRFLogicallyDeleted
	XRFPhysicallyDeleted
	XRFInexistent
	XRFInvalid
)

// XRFEntry is the decoded form of one packed 32-bit XRF word.
type XRFEntry struct {
	Status       XRFStatus
	Block        int32 // signed: negative for logically deleted, magnitude otherwise
	Offset       int32
	NewFlag      bool
	ModifiedFlag bool
}

const (
	xrfBlockUnit  = 2048
	xrfOffsetMask = 0x000001FF
	xrfNewFlag    = 0x00000400
	xrfModFlag    = 0x00000200
)

func xrfStatusFromFields(block, offset int32) XRFStatus {
	switch {
	case block > 0:
		return XRFActive
	case block < 0 && offset > 0:
		return XRFLogicallyDeleted
	case block == -1 && offset == 0:
		return XRFPhysicallyDeleted
	case block == 0 && offset == 0:
		return XRFInexistent
	default:
		return XRFInvalid
	}
}

// encodeXRFWord packs an entry into its on-disk 32-bit form, following
// pyisis/records.py's XrfRecord.encode(): magnitude is built by OR-ing
// the shifted block with offset/flag bits for a positive block, then
// negated (two's complement) for the logically-deleted case.
//
// Grounded on pyisis/records.py XrfRecord.encode/decode and spec §4.1.
func encodeXRFWord(e XRFEntry, extraLarge bool, shift uint) int32 {
	switch e.Status {
	case XRFInexistent:
		return 0
	case XRFPhysicallyDeleted:
		return -xrfBlockUnit
	}

	var unit int32
	var offsetMask int32
	if extraLarge {
		unit = xrfBlockUnit >> shift
		offsetMask = xrfOffsetMask >> shift
	} else {
		unit = xrfBlockUnit
		offsetMask = xrfOffsetMask
	}

	block := e.Block
	if block < 0 {
		block = -block
	}
	xrmfp := (e.Offset >> shift) & offsetMask
	if e.NewFlag {
		xrmfp |= xrfNewFlag >> shift
	}
	if e.ModifiedFlag {
		xrmfp |= xrfModFlag >> shift
	}
	magnitude := block*unit | xrmfp

	if e.Status == XRFLogicallyDeleted {
		return -magnitude
	}
	return magnitude
}

// decodeXRFWord is the inverse of encodeXRFWord.
func decodeXRFWord(word int32, extraLarge bool, shift uint) XRFEntry {
	if word == 0 {
		return XRFEntry{Status: XRFInexistent}
	}
	if word == -xrfBlockUnit {
		return XRFEntry{Status: XRFPhysicallyDeleted, Block: -1}
	}

	negative := word < 0
	magnitude := word
	if negative {
		magnitude = -magnitude
	}

	var unit int32
	var offsetMask int32
	if extraLarge {
		unit = xrfBlockUnit >> shift
		offsetMask = xrfOffsetMask >> shift
	} else {
		unit = xrfBlockUnit
		offsetMask = xrfOffsetMask
	}

	block := magnitude / unit
	low := magnitude % unit
	newFlag := low&(xrfNewFlag>>shift) != 0
	modFlag := low&(xrfModFlag>>shift) != 0
	offset := (low & offsetMask) << shift

	status := XRFActive
	signedBlock := block
	if negative {
		status = XRFLogicallyDeleted
		signedBlock = -block
	}
	if status == XRFActive && block == 0 && offset == 0 {
		status = XRFInexistent
	}
	return XRFEntry{Status: status, Block: signedBlock, Offset: offset, NewFlag: newFlag, ModifiedFlag: modFlag}
}

// XRF is the paged cross-reference cache: a fixed-size block index
// mapping MFN -> (block, offset, flags). One block holds
// POINTER_PER_BLOCK entries; the first 4 bytes of each block hold the
// signed block number (positive = more blocks follow, negative = last
// block).
//
// Grounded on pyisis/files.py's XrfCache and pyisis/records.py's
// XrfRecord bit-math.
type XRF struct {
	f          *os.File
	cfg        Config
	extraLarge bool
	shift      uint
	cache      map[int32][]int32 // block index -> raw words (including header slot at [0])
	blockCount int32             // highest block index written
}

// OpenXRF opens or creates the cross-reference file at path.
func OpenXRF(path string, cfg Config, extraLarge bool, shift uint) (*XRF, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("xrf: open: %w", err)
	}
	x := &XRF{f: f, cfg: cfg, extraLarge: extraLarge, shift: shift, cache: map[int32][]int32{}}
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("xrf: stat: %w", err)
	}
	if fi.Size() == 0 {
		if err := x.appendBlock(); err != nil {
			return nil, err
		}
	} else {
		x.blockCount = int32(fi.Size() / int64(cfg.BlockSize))
	}
	return x, nil
}

func (x *XRF) Close() error {
	if x.f == nil {
		return nil
	}
	err := x.f.Close()
	x.f = nil
	return err
}

// mfnLocation computes the 1-based block index and within-block slot
// index for mfn, per spec §4.1.
func (x *XRF) mfnLocation(mfn int) (blockIdx int32, slot int32) {
	ppb := x.cfg.pointerPerBlock()
	idx := int32(mfn - 1)
	blockIdx = idx/ppb + 1
	slot = idx % ppb
	return
}

func (x *XRF) loadBlock(blockIdx int32) ([]int32, error) {
	if words, ok := x.cache[blockIdx]; ok {
		return words, nil
	}
	ppb := x.cfg.pointerPerBlock()
	buf := make([]byte, x.cfg.BlockSize)
	off := int64(blockIdx-1) * int64(x.cfg.BlockSize)
	if _, err := x.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("xrf: read block %d: %w", blockIdx, err)
	}
	r := newByteReader(buf)
	words := make([]int32, ppb+1)
	words[0] = r.i32()
	for i := int32(1); i <= ppb; i++ {
		words[i] = r.i32()
	}
	x.cache[blockIdx] = words
	return words, nil
}

// Get returns the decoded entry for mfn, synthesizing XRFInexistent when
// mfn falls beyond the current file per spec §4.1 failure semantics.
func (x *XRF) Get(mfn int) (XRFEntry, error) {
	if mfn < 1 {
		return XRFEntry{Status: XRFInexistent}, nil
	}
	blockIdx, slot := x.mfnLocation(mfn)
	if blockIdx > x.blockCount {
		return XRFEntry{Status: XRFInexistent}, nil
	}
	words, err := x.loadBlock(blockIdx)
	if err != nil {
		return XRFEntry{}, err
	}
	return decodeXRFWord(words[slot+1], x.extraLarge, x.shift), nil
}

// Put writes entry for mfn, flushing immediately (spec §4.1/§5 ordering
// guarantees), extending the file with new blocks as needed.
func (x *XRF) Put(mfn int, entry XRFEntry) error {
	blockIdx, slot := x.mfnLocation(mfn)
	for blockIdx > x.blockCount {
		if err := x.appendBlock(); err != nil {
			return err
		}
	}
	words, err := x.loadBlock(blockIdx)
	if err != nil {
		return err
	}
	word := encodeXRFWord(entry, x.extraLarge, x.shift)
	words[slot+1] = word

	off := int64(blockIdx-1)*int64(x.cfg.BlockSize) + int64(slot+1)*4
	w := newByteWriter(4)
	w.i32(word)
	if _, err := x.f.WriteAt(w.bytes(), off); err != nil {
		return fmt.Errorf("xrf: write entry: %w", err)
	}
	return x.f.Sync()
}

// appendBlock seeks to end, writes a header slot -(block_count+1) and
// POINTER_PER_BLOCK zero slots, then patches the previous block's
// header from negative to positive. Grounded on pyisis/files.py's
// XrfCache._add_empty_block.
func (x *XRF) appendBlock() error {
	ppb := x.cfg.pointerPerBlock()
	newIdx := x.blockCount + 1

	w := newByteWriter(int(x.cfg.BlockSize))
	w.i32(-newIdx)
	for i := int32(0); i < ppb; i++ {
		w.i32(0)
	}
	w.pad(int(x.cfg.BlockSize) - len(w.bytes()))

	off := int64(newIdx-1) * int64(x.cfg.BlockSize)
	if _, err := x.f.WriteAt(w.bytes(), off); err != nil {
		return fmt.Errorf("xrf: append block: %w", err)
	}

	words := make([]int32, ppb+1)
	words[0] = -newIdx
	x.cache[newIdx] = words

	if x.blockCount > 0 {
		if err := x.patchBlockHeader(x.blockCount, newIdx); err != nil {
			return err
		}
	}
	x.blockCount = newIdx
	return x.f.Sync()
}

func (x *XRF) patchBlockHeader(blockIdx, value int32) error {
	words, err := x.loadBlock(blockIdx)
	if err != nil {
		return err
	}
	words[0] = value
	off := int64(blockIdx-1) * int64(x.cfg.BlockSize)
	hw := newByteWriter(4)
	hw.i32(value)
	if _, err := x.f.WriteAt(hw.bytes(), off); err != nil {
		return fmt.Errorf("xrf: patch block header: %w", err)
	}
	return nil
}
