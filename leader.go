package isisgo

// Splitter threshold constants, preserved verbatim from the upstream C
// MSNVSPLT per spec §9: a record write landing in [threshold, 511]
// within its current block is pushed to the next block boundary instead.
const (
	SplitThresholdSmall = 493
	SplitThresholdXL    = 497
)

// Directory entry byte sizes.
const (
	DirSizeSmall = 6  // tag:u16, offset:u16, length:u16
	DirSizeXL    = 12 // tag:i32, offset:i32, length:i32
)

// Leader byte sizes (spec §6): both variants pack to 20 bytes, differing
// in which fields are widened.
const LeaderSize = 20

// Leader holds the fixed-size prologue of a record.
type Leader struct {
	MFN    int32
	MFRL   uint16 // packed record length
	Flag   int32  // always 1
	MFBWB  int32  // backward-pointer block (widened in XL)
	MFBWP  uint16 // backward-pointer offset
	Base   uint16 // leader_size + dir_size*nvf
	NVF    uint16 // directory entry count
	Status uint16
}

func (db *MasterFile) dirSize() int {
	if db.header.ExtraLarge() {
		return DirSizeXL
	}
	return DirSizeSmall
}

func (db *MasterFile) splitThreshold() int {
	if db.header.ExtraLarge() {
		return SplitThresholdXL
	}
	return SplitThresholdSmall
}

// encodeLeader packs a Leader using the variant selected by extraLarge.
func encodeLeader(l Leader, extraLarge bool) []byte {
	w := newByteWriter(LeaderSize)
	w.i32(l.MFN)
	w.u16(l.MFRL)
	if extraLarge {
		w.u16(uint16(l.Flag))
		w.i32(l.MFBWB)
	} else {
		w.i32(l.Flag)
		w.u16(uint16(l.MFBWB))
	}
	w.u16(l.MFBWP)
	w.u16(l.Base)
	w.u16(l.NVF)
	w.u16(l.Status)
	return w.bytes()
}

func decodeLeader(buf []byte, extraLarge bool) (Leader, error) {
	if len(buf) < LeaderSize {
		return Leader{}, &CorruptError{Field: "leader", Err: ErrCorrupt}
	}
	r := newByteReader(buf)
	var l Leader
	l.MFN = r.i32()
	l.MFRL = r.u16()
	if extraLarge {
		l.Flag = int32(r.u16())
		l.MFBWB = r.i32()
	} else {
		l.Flag = r.i32()
		l.MFBWB = int32(r.u16())
	}
	l.MFBWP = r.u16()
	l.Base = r.u16()
	l.NVF = r.u16()
	l.Status = r.u16()
	return l, nil
}

// statusByteOffset returns the byte offset of the status field within
// an encoded leader, used to patch status in place without rewriting
// the whole record (spec §4.2 Delete/Undelete, grounded on the
// patch-in-place technique from the teacher's rename.go.patchRename).
const statusByteOffset = LeaderSize - 2

// DirEntry is one (tag, relative_offset, length) directory triple.
// Relative offsets are into the data region following the directory.
type DirEntry struct {
	Tag    int32 // masked to 16 bits on decode
	Offset int32
	Length int32
}

func encodeDirEntry(e DirEntry, extraLarge bool) []byte {
	w := newByteWriter(DirSizeXL)
	if extraLarge {
		w.i32(e.Tag)
		w.i32(e.Offset)
		w.i32(e.Length)
	} else {
		w.u16(uint16(e.Tag))
		w.u16(uint16(e.Offset))
		w.u16(uint16(e.Length))
	}
	return w.bytes()
}

func decodeDirEntry(buf []byte, extraLarge bool) DirEntry {
	r := newByteReader(buf)
	var e DirEntry
	if extraLarge {
		e.Tag = r.i32() & 0xffff
		e.Offset = r.i32()
		e.Length = r.i32()
	} else {
		e.Tag = int32(r.u16()) & 0xffff
		e.Offset = int32(r.u16())
		e.Length = int32(r.u16())
	}
	return e
}
