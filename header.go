package isisgo

// CtrlSize is the byte size of the master file control header.
const CtrlSize = 64

// Header is the master file control header at offset 0: ctlmfn=0,
// nxtmfn (next MFN to allocate), nxtmfb/nxtmfp (tail block/offset),
// mftype (0=database, 1=system messages, >1=extra-large code), reccnt,
// and three reserved counters.
//
// Grounded on pyisis/config.py's CTRL_MASK="<iiiHBBiiii" and spec §6.
type Header struct {
	Ctlmfn int32
	Nxtmfn int32
	Nxtmfb int32
	Nxtmfp int32
	Mftype uint8
	Reccnt int32
	Mfcxx1 int32
	Mfcxx2 int32
	Mfcxx3 int32
}

// ExtraLarge reports whether this database uses the extra-large leader
// variant, per mftype > 1.
func (h Header) ExtraLarge() bool { return h.Mftype > 1 }

// ExtraLargeShift is the "L" shift amount used throughout the XRF
// bit-math for extra-large databases (mftype encodes it directly).
func (h Header) ExtraLargeShift() uint {
	if h.Mftype > 1 {
		return uint(h.Mftype)
	}
	return 0
}

func encodeHeader(h Header) []byte {
	w := newByteWriter(CtrlSize)
	w.i32(h.Ctlmfn)
	w.i32(h.Nxtmfn)
	w.i32(h.Nxtmfb)
	w.i32(h.Nxtmfp)
	w.u16(0) // reserved
	w.u8(h.Mftype)
	w.u8(0) // reserved
	w.i32(h.Reccnt)
	w.i32(h.Mfcxx1)
	w.i32(h.Mfcxx2)
	w.i32(h.Mfcxx3)
	w.pad(CtrlSize - len(w.bytes()))
	return w.bytes()
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < CtrlSize {
		return Header{}, &CorruptError{Field: "control header", Err: ErrCorrupt}
	}
	r := newByteReader(buf)
	var h Header
	h.Ctlmfn = r.i32()
	h.Nxtmfn = r.i32()
	h.Nxtmfb = r.i32()
	h.Nxtmfp = r.i32()
	r.skip(2)
	h.Mftype = r.u8()
	r.skip(1)
	h.Reccnt = r.i32()
	h.Mfcxx1 = r.i32()
	h.Mfcxx2 = r.i32()
	h.Mfcxx3 = r.i32()
	return h, nil
}
