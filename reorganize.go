package isisgo

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReorganizeOptions controls the Reorganize maintenance pass.
//
// Supplemented feature: pyisis/files.py's MasterFile.pack() was never
// implemented upstream (raise NotImplementedError()). This is grounded
// instead on the teacher's repair.go Repair()/CompactOptions, adapted
// from folio's line-record model to ISIS's page/leader model. See
// SPEC_FULL.md §2.1.
type ReorganizeOptions struct {
	// PurgeHistory drops logically-deleted (superseded) versions
	// entirely instead of retaining them for Previous() chains.
	PurgeHistory bool
}

// Reorganize rewrites the master file, keeping active records (and,
// unless PurgeHistory is set, the logically-deleted versions still
// reachable from an active record's backward-pointer chain) in a
// temporary database whose XRF Write builds from scratch, then renames
// the new master and XRF files over the originals, one after the other.
func Reorganize(dir, name string, cfg Config, opts ReorganizeOptions) error {
	src, err := Open(dir, name, cfg)
	if err != nil {
		return fmt.Errorf("reorganize: open source: %w", err)
	}
	defer src.Close()

	tmpName := name + ".reorg.tmp"
	dst, err := Open(dir, tmpName, cfg)
	if err != nil {
		return fmt.Errorf("reorganize: open dest: %w", err)
	}

	// Walk active records in MFN order; for each, optionally also carry
	// its retained history chain so Previous() keeps working for
	// callers that don't purge.
	for mfn, rec := range src.Iterate() {
		if rec.Status != StatusActive {
			continue
		}
		chain := []*Record{rec}
		if !opts.PurgeHistory {
			cur := rec
			for {
				prev, err := src.Previous(cur)
				if err != nil {
					dst.Close()
					return fmt.Errorf("reorganize: mfn %d: previous: %w", mfn, err)
				}
				if prev == nil {
					break
				}
				chain = append(chain, prev)
				cur = prev
			}
		}
		// Write oldest-first, all under one freshly-assigned MFN, so the
		// backward-pointer chain Previous() walks is rebuilt in the new
		// file exactly as it stood in the source. Only the oldest write
		// allocates a fresh MFN (v.MFN = 0); every later version in the
		// chain reuses that same MFN so Write() treats it as a new
		// physical version of an existing record, not a distinct one.
		newMFN := 0
		for i := len(chain) - 1; i >= 0; i-- {
			v := chain[i]
			v.MFN = newMFN
			resetFlags := i == len(chain)-1
			if err := dst.Write(v, resetFlags); err != nil {
				dst.Close()
				return fmt.Errorf("reorganize: mfn %d: write: %w", mfn, err)
			}
			newMFN = v.MFN
		}
	}

	dstPath := dst.path
	dstXRFPath := dst.xrf.f.Name()
	if err := dst.Close(); err != nil {
		return fmt.Errorf("reorganize: close dest: %w", err)
	}
	if err := src.Close(); err != nil {
		return fmt.Errorf("reorganize: close source: %w", err)
	}

	srcPath := mstPath(dir, name)
	srcXRFPath := xrfPath(dir, name)
	if err := os.Rename(dstPath, srcPath); err != nil {
		return fmt.Errorf("reorganize: swap master file: %w", err)
	}
	if err := os.Rename(dstXRFPath, srcXRFPath); err != nil {
		return fmt.Errorf("reorganize: swap xrf file: %w", err)
	}
	return nil
}

func mstPath(dir, name string) string { return filepath.Join(dir, name+".mst") }
func xrfPath(dir, name string) string { return filepath.Join(dir, name+".xrf") }

// RebuildXRF reconstructs the cross-reference file by sequentially
// scanning the master file's leaders, independent of the (possibly
// corrupt) existing XRF. This is the documented recovery path for the
// "invalid" XRF status kind (spec §7). Grounded on the teacher's
// rehash.go walk-all-records-and-rewrite pattern, adapted from content
// hashing to index-entry recomputation.
func RebuildXRF(dir, name string, cfg Config) error {
	mp := mstPath(dir, name)
	f, err := os.OpenFile(mp, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("rebuildxrf: open master: %w", err)
	}
	defer f.Close()

	buf := make([]byte, CtrlSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("rebuildxrf: read control: %w", err)
	}
	header, err := decodeHeader(buf)
	if err != nil {
		return err
	}
	extraLarge := header.ExtraLarge()
	shift := header.ExtraLargeShift()

	xrfFile := xrfPath(dir, name)
	_ = os.Remove(xrfFile)
	xrf, err := OpenXRF(xrfFile, cfg, extraLarge, shift)
	if err != nil {
		return err
	}
	defer xrf.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()

	pos := int64(CtrlSize)
	leaderBuf := make([]byte, LeaderSize)
	for pos+int64(LeaderSize) <= size {
		if _, err := f.ReadAt(leaderBuf, pos); err != nil {
			break
		}
		leader, err := decodeLeader(leaderBuf, extraLarge)
		if err != nil || leader.MFN <= 0 || leader.MFRL == 0 {
			break
		}
		status := Status(leader.Status)
		entry := XRFEntry{
			Block:   int32(pos/int64(cfg.BlockSize)) + 1,
			Offset:  int32(pos % int64(cfg.BlockSize)),
			NewFlag: false,
		}
		switch status {
		case StatusActive:
			entry.Status = XRFActive
		case StatusLogicallyDeleted:
			entry.Status = XRFLogicallyDeleted
			entry.Block = -entry.Block
		default:
			entry.Status = XRFPhysicallyDeleted
		}
		if err := xrf.Put(int(leader.MFN), entry); err != nil {
			return fmt.Errorf("rebuildxrf: mfn %d: %w", leader.MFN, err)
		}
		pos += int64(leader.MFRL)
		// Write starts extra-large records on a 1<<shift byte boundary.
		if extraLarge && shift > 0 {
			align := int64(1) << shift
			pos = (pos + align - 1) / align * align
		}
	}
	return nil
}
