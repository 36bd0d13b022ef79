package isisgo

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MasterFile is a handle on one ISIS master file (.mst) and its
// cross-reference file (.xrf). Grounded on pyisis/files.py's
// MasterFile and pyisis/records.py's MasterRecord.save()/read().
type MasterFile struct {
	path     string
	f        *os.File
	xrf      *XRF
	lock     *fileLock
	header   Header
	cfg      Config
	readOnly bool

	mu sync.Mutex
}

// Open opens (or creates) the master file named name inside dir, along
// with its .xrf sibling. On permission denial it falls back to a
// read-only handle, matching both pyisis's __init__ IOError/"Permission
// denied" handling and the teacher's db.go Open() fallback idiom.
func Open(dir, name string, cfg Config) (*MasterFile, error) {
	if cfg.BlockSize == 0 {
		cfg = DefaultConfig()
	}
	mstPath := filepath.Join(dir, name+".mst")
	xrfPath := filepath.Join(dir, name+".xrf")

	f, readOnly, err := openWithFallback(mstPath)
	if err != nil {
		return nil, fmt.Errorf("master: open: %w", err)
	}

	db := &MasterFile{path: mstPath, f: f, cfg: cfg, readOnly: readOnly}
	db.lock = &fileLock{}
	db.lock.setFile(f)

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("master: stat: %w", err)
	}
	if fi.Size() == 0 {
		db.header = Header{Nxtmfn: 1, Nxtmfb: 1, Nxtmfp: CtrlSize}
		if cfg.LeaderXL {
			db.header.Mftype = 2 // smallest "extra-large" code per mftype>1
		}
		if err := db.writeControl(); err != nil {
			return nil, err
		}
		// Zero-fill the rest of the first block.
		if err := db.extendTo(int64(cfg.BlockSize)); err != nil {
			return nil, err
		}
	} else {
		buf := make([]byte, CtrlSize)
		if _, err := f.ReadAt(buf, 0); err != nil {
			return nil, fmt.Errorf("master: read control: %w", err)
		}
		h, err := decodeHeader(buf)
		if err != nil {
			return nil, err
		}
		db.header = h
	}

	xrf, err := OpenXRF(xrfPath, cfg, db.header.ExtraLarge(), db.header.ExtraLargeShift())
	if err != nil {
		return nil, err
	}
	db.xrf = xrf
	return db, nil
}

func openWithFallback(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, fs.ErrPermission) {
		f, err2 := os.OpenFile(path, os.O_RDONLY, 0)
		if err2 != nil {
			return nil, false, err2
		}
		return f, true, nil
	}
	return nil, false, err
}

// Close flushes and releases both underlying file handles.
func (db *MasterFile) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return ErrClosed
	}
	db.lock.setFile(nil)
	err1 := db.f.Close()
	var err2 error
	if db.xrf != nil {
		err2 = db.xrf.Close()
	}
	db.f = nil
	if err1 != nil {
		return err1
	}
	return err2
}

func (db *MasterFile) writeControl() error {
	if db.readOnly {
		return nil
	}
	buf := encodeHeader(db.header)
	_, err := db.f.WriteAt(buf, 0)
	if err != nil {
		return fmt.Errorf("master: write control: %w", err)
	}
	return db.f.Sync()
}

func (db *MasterFile) extendTo(size int64) error {
	fi, err := db.f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() >= size {
		return nil
	}
	return db.f.Truncate(size)
}

// recordOffset computes the absolute byte offset for an XRF entry,
// grounded on pyisis/files.py's MasterFile._get_record_offset.
func (db *MasterFile) recordOffset(entry XRFEntry) int64 {
	block := entry.Block
	if block < 0 {
		block = -block
	}
	return int64(block-1)*int64(db.cfg.BlockSize) + int64(entry.Offset)
}

// Read fetches and decodes the record at mfn. Returns ErrNotFound for
// inexistent or physically-deleted slots, ErrCorrupt for an invalid XRF
// status or a leader/base mismatch.
func (db *MasterFile) Read(mfn int) (*Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return nil, ErrClosed
	}

	if err := db.lock.Lock(LockShared); err != nil {
		return nil, fmt.Errorf("master: lock: %w", err)
	}
	defer db.lock.Unlock()

	entry, err := db.xrf.Get(mfn)
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case XRFInexistent, XRFPhysicallyDeleted:
		return nil, ErrNotFound
	case XRFInvalid:
		return nil, &CorruptError{Field: "xrf status", Err: ErrCorrupt}
	}

	rec, _, err := db.readAt(db.recordOffset(entry))
	if err != nil {
		return nil, err
	}
	rec.MFN = mfn
	if entry.Status == XRFLogicallyDeleted {
		rec.Status = StatusLogicallyDeleted
	} else {
		rec.Status = StatusActive
	}
	rec.mst = db
	return rec, nil
}

// readAt decodes the leader+directory+data at absolute offset pos and
// returns the record plus the leader actually read (used by Previous
// and Reorganize).
func (db *MasterFile) readAt(pos int64) (*Record, Leader, error) {
	extraLarge := db.header.ExtraLarge()
	leaderBuf := make([]byte, LeaderSize)
	if _, err := db.f.ReadAt(leaderBuf, pos); err != nil {
		return nil, Leader{}, fmt.Errorf("master: read leader: %w", err)
	}
	leader, err := decodeLeader(leaderBuf, extraLarge)
	if err != nil {
		return nil, Leader{}, err
	}

	dirSize := db.dirSize()
	wantBase := LeaderSize + dirSize*int(leader.NVF)
	if int(leader.Base) != wantBase {
		return nil, Leader{}, &CorruptError{Offset: pos, Field: "leader.base", Err: ErrCorrupt}
	}

	rest := make([]byte, int(leader.MFRL)-LeaderSize)
	if _, err := db.f.ReadAt(rest, pos+LeaderSize); err != nil {
		return nil, Leader{}, fmt.Errorf("master: read body: %w", err)
	}
	dirBytes := rest[:dirSize*int(leader.NVF)]
	data := rest[dirSize*int(leader.NVF):]

	rec := NewRecord(db.cfg)
	rec.MFBWB = leader.MFBWB
	rec.MFBWP = int32(leader.MFBWP)

	for i := 0; i < int(leader.NVF); i++ {
		entryBuf := dirBytes[i*dirSize : (i+1)*dirSize]
		de := decodeDirEntry(entryBuf, extraLarge)
		fieldBytes := data[de.Offset : de.Offset+de.Length]
		f := NewField(int(de.Tag), string(fieldBytes), db.cfg)
		appendFieldPreservingGroups(rec, f)
	}
	return rec, leader, nil
}

// appendFieldPreservingGroups groups contiguous equal tags into a
// repeatable container, matching pyisis's itertools.groupby-on-tag read
// path (records must be directory-adjacent to group, per spec §4.2).
func appendFieldPreservingGroups(rec *Record, f Field) {
	if len(rec.order) > 0 {
		last := rec.order[len(rec.order)-1]
		if last == f.Tag {
			tv := rec.values[last]
			if !tv.isRepeat {
				tv = tagValue{repeatable: RepeatableField{Tag: last, Elements: []Field{tv.field}}, isRepeat: true}
			}
			tv.repeatable.Elements = append(tv.repeatable.Elements, f)
			rec.values[last] = tv
			return
		}
	}
	rec.setSingle(f.Tag, f)
}

// Write serializes record to the store, implementing spec §4.2's
// Write() algorithm verbatim, including the splitter threshold.
func (db *MasterFile) Write(record *Record, resetFlags bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return ErrClosed
	}
	if db.readOnly {
		return ErrReadOnly
	}
	if err := db.lock.Lock(LockExclusive); err != nil {
		return fmt.Errorf("master: lock: %w", err)
	}
	defer db.lock.Unlock()

	if record.MFN == 0 {
		record.MFN = int(db.header.Nxtmfn)
		db.header.Nxtmfn++
	}

	entry, err := db.xrf.Get(record.MFN)
	if err != nil {
		return err
	}

	var mfbwb, mfbwp int32
	var newFlag, modifiedFlag bool
	var oldPos int64
	wasActive := entry.Status == XRFActive

	switch entry.Status {
	case XRFInexistent, XRFPhysicallyDeleted:
		newFlag = true
	default:
		oldPos = db.recordOffset(entry)
		if entry.NewFlag {
			newFlag = true
		} else if !resetFlags {
			modifiedFlag = true
			mfbwb = int32(oldPos/int64(db.cfg.BlockSize)) + 1
			mfbwp = int32(oldPos % int64(db.cfg.BlockSize))
		}
	}
	if resetFlags {
		newFlag = false
		modifiedFlag = false
		mfbwb, mfbwp = 0, 0
	}
	record.MFBWB, record.MFBWP = mfbwb, mfbwp

	if wasActive {
		if err := db.patchStatus(oldPos, uint16(StatusLogicallyDeleted)); err != nil {
			return err
		}
	}

	extraLarge := db.header.ExtraLarge()
	dirSize := db.dirSize()
	fields := record.Fields()
	nvf := len(fields)
	base := LeaderSize + dirSize*nvf

	dataBuf := newByteWriter(0)
	dirBuf := newByteWriter(0)
	relOff := int32(0)
	for _, f := range fields {
		b := []byte(f.Data)
		dirBuf.buf = append(dirBuf.buf, encodeDirEntry(DirEntry{Tag: int32(f.Tag), Offset: relOff, Length: int32(len(b))}, extraLarge)...)
		dataBuf.buf = append(dataBuf.buf, b...)
		relOff += int32(len(b))
	}
	mfrl := base + len(dataBuf.bytes())

	pos := (int64(db.header.Nxtmfb)-1)*int64(db.cfg.BlockSize) + int64(db.header.Nxtmfp)
	// Extra-large XRF entries keep the offset shifted right by the
	// mftype shift, so records start on a 1<<shift byte boundary.
	if shift := db.header.ExtraLargeShift(); extraLarge && shift > 0 {
		align := int64(1) << shift
		pos = (pos + align - 1) / align * align
	}
	testPos := pos % int64(db.cfg.BlockSize)
	threshold := int64(db.splitThreshold())
	if testPos >= threshold && testPos <= int64(db.cfg.BlockSize)-1 {
		blocks := pos/int64(db.cfg.BlockSize) + 1
		pos = blocks * int64(db.cfg.BlockSize)
	}

	if err := db.extendTo(pos + int64(mfrl)); err != nil {
		return fmt.Errorf("master: extend: %w", err)
	}
	// Keep the file a whole number of blocks, per the format's block
	// alignment contract.
	if fi, err := db.f.Stat(); err == nil {
		remBlocks := (fi.Size() + int64(db.cfg.BlockSize) - 1) / int64(db.cfg.BlockSize)
		if err := db.extendTo(remBlocks * int64(db.cfg.BlockSize)); err != nil {
			return err
		}
	}

	leader := Leader{
		MFN: int32(record.MFN), MFRL: uint16(mfrl), Flag: 1,
		MFBWB: mfbwb, MFBWP: uint16(mfbwp),
		Base: uint16(base), NVF: uint16(nvf), Status: uint16(StatusActive),
	}
	buf := append([]byte{}, encodeLeader(leader, extraLarge)...)
	buf = append(buf, dirBuf.bytes()...)
	buf = append(buf, dataBuf.bytes()...)
	if _, err := db.f.WriteAt(buf, pos); err != nil {
		return fmt.Errorf("master: write record: %w", err)
	}

	newTail := pos + int64(len(buf))
	blocks := newTail / int64(db.cfg.BlockSize)
	offsetInBlock := int32(newTail % int64(db.cfg.BlockSize))
	if offsetInBlock == 0 {
		offsetInBlock = 1
	}
	db.header.Nxtmfb = int32(blocks) + 1
	db.header.Nxtmfp = offsetInBlock
	db.header.Reccnt++
	if err := db.writeControl(); err != nil {
		return err
	}
	if err := db.f.Sync(); err != nil {
		return fmt.Errorf("master: sync: %w", err)
	}

	newEntry := XRFEntry{Status: XRFActive, Block: int32(pos/int64(db.cfg.BlockSize)) + 1, Offset: int32(pos % int64(db.cfg.BlockSize)), NewFlag: newFlag, ModifiedFlag: modifiedFlag}
	record.Status = StatusActive
	return db.xrf.Put(record.MFN, newEntry)
}

func (db *MasterFile) patchStatus(pos int64, status uint16) error {
	w := newByteWriter(2)
	w.u16(status)
	_, err := db.f.WriteAt(w.bytes(), pos+statusByteOffset)
	if err != nil {
		return fmt.Errorf("master: patch status: %w", err)
	}
	return db.f.Sync()
}

// Delete logically deletes mfn. Requires it be currently active.
func (db *MasterFile) Delete(mfn int) error {
	return db.transitionStatus(mfn, XRFActive, XRFLogicallyDeleted, StatusLogicallyDeleted)
}

// Undelete reverses a logical deletion. Requires it be currently
// logically deleted.
func (db *MasterFile) Undelete(mfn int) error {
	return db.transitionStatus(mfn, XRFLogicallyDeleted, XRFActive, StatusActive)
}

func (db *MasterFile) transitionStatus(mfn int, want, next XRFStatus, nextStatus Status) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return ErrClosed
	}
	if db.readOnly {
		return ErrReadOnly
	}
	if err := db.lock.Lock(LockExclusive); err != nil {
		return fmt.Errorf("master: lock: %w", err)
	}
	defer db.lock.Unlock()

	entry, err := db.xrf.Get(mfn)
	if err != nil {
		return err
	}
	if entry.Status != want {
		return ErrInvalidStatus
	}
	pos := db.recordOffset(entry)
	if err := db.patchStatus(pos, uint16(nextStatus)); err != nil {
		return err
	}
	newEntry := entry
	newEntry.Status = next
	if next == XRFLogicallyDeleted {
		if newEntry.Block > 0 {
			newEntry.Block = -newEntry.Block
		}
	} else {
		if newEntry.Block < 0 {
			newEntry.Block = -newEntry.Block
		}
	}
	return db.xrf.Put(mfn, newEntry)
}

// Previous returns the version preceding record, or nil if it is the
// first version (mfbwb==mfbwp==0).
func (db *MasterFile) Previous(record *Record) (*Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return nil, ErrClosed
	}
	if record.MFBWB == 0 && record.MFBWP == 0 {
		return nil, nil
	}
	pos := int64(record.MFBWB-1)*int64(db.cfg.BlockSize) + int64(record.MFBWP)
	rec, leader, err := db.readAt(pos)
	if err != nil {
		return nil, err
	}
	rec.MFN = int(leader.MFN)
	rec.Status = Status(leader.Status)
	rec.mst = db
	return rec, nil
}

// Iterate yields every MFN in [1, nxtmfn) with its record, skipping
// inexistent/physically-deleted slots. Grounded on pyisis/files.py's
// slice-indexing iteration and the teacher's all.go lazy-iterator idiom.
func (db *MasterFile) Iterate() iter.Seq2[int, *Record] {
	return func(yield func(int, *Record) bool) {
		last := int(db.header.Nxtmfn) - 1
		for mfn := 1; mfn <= last; mfn++ {
			rec, err := db.Read(mfn)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return
			}
			if !yield(mfn, rec) {
				return
			}
		}
	}
}

// NextMFN reports the MFN that would be assigned to the next new
// record, for diagnostics/Reorganize.
func (db *MasterFile) NextMFN() int { return int(db.header.Nxtmfn) }

// Name returns the database's base name (without the .mst extension),
// used by the formatting language's mstname() function.
func (db *MasterFile) Name() string {
	base := filepath.Base(db.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
