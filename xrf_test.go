package isisgo

import "testing"

func TestXRFWordRoundTrip(t *testing.T) {
	cases := []XRFEntry{
		{Status: XRFActive, Block: 3, Offset: 120, NewFlag: true},
		{Status: XRFActive, Block: 1, Offset: 64, ModifiedFlag: true},
		{Status: XRFLogicallyDeleted, Block: -3, Offset: 120},
		{Status: XRFPhysicallyDeleted, Block: -1},
		{Status: XRFInexistent},
	}
	for _, c := range cases {
		word := encodeXRFWord(c, false, 0)
		got := decodeXRFWord(word, false, 0)
		if got.Status != c.Status {
			t.Fatalf("case %+v: status = %v, want %v (word=%d)", c, got.Status, c.Status, word)
		}
		if c.Status == XRFActive || c.Status == XRFLogicallyDeleted {
			wantBlock := c.Block
			if got.Block != wantBlock {
				t.Fatalf("case %+v: block = %d, want %d", c, got.Block, wantBlock)
			}
			if got.Offset != c.Offset {
				t.Fatalf("case %+v: offset = %d, want %d", c, got.Offset, c.Offset)
			}
		}
		// Re-encoding the decoded entry must reproduce the same word.
		if re := encodeXRFWord(got, false, 0); re != word {
			t.Fatalf("case %+v: re-encode = %d, want %d", c, re, word)
		}
	}
}

func TestXRFAppendBlockPatchesPreviousHeader(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	x, err := OpenXRF(dir+"/t.xrf", cfg, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer x.Close()

	ppb := cfg.pointerPerBlock()
	// Force enough entries to roll over to a second block.
	for mfn := 1; mfn <= int(ppb)+1; mfn++ {
		if err := x.Put(mfn, XRFEntry{Status: XRFActive, Block: 1, Offset: int32(64 + mfn)}); err != nil {
			t.Fatalf("mfn %d: %v", mfn, err)
		}
	}
	if x.blockCount != 2 {
		t.Fatalf("blockCount = %d, want 2", x.blockCount)
	}
	block1, err := x.loadBlock(1)
	if err != nil {
		t.Fatal(err)
	}
	if block1[0] != 2 {
		t.Fatalf("block 1 header = %d, want 2 (positive, points at block 2)", block1[0])
	}
	block2, err := x.loadBlock(2)
	if err != nil {
		t.Fatal(err)
	}
	if block2[0] != -2 {
		t.Fatalf("block 2 header = %d, want -2 (last block)", block2[0])
	}
}
