package isisgo

import "testing"

func TestRecordToXMLSingleField(t *testing.T) {
	cfg := DefaultConfig()
	rec := NewRecord(cfg)
	rec.MFN = 3
	if err := rec.Set(10, "Smith, J."); err != nil {
		t.Fatal(err)
	}
	want := `<record mfn="3" status="active"><field tag="10"><occ><subfield tag=""><![CDATA[Smith, J.]]></subfield></occ></field></record>`
	if got := rec.ToXML(); got != want {
		t.Fatalf("ToXML = %q, want %q", got, want)
	}
}

func TestRecordToXMLRepeatableField(t *testing.T) {
	cfg := DefaultConfig()
	rec := NewRecord(cfg)
	rec.MFN = 7
	rec.Status = StatusLogicallyDeleted
	if err := rec.Set(90, []string{"alpha", "beta"}); err != nil {
		t.Fatal(err)
	}
	want := `<record mfn="7" status="logically deleted">` +
		`<field tag="90">` +
		`<occ><subfield tag=""><![CDATA[alpha]]></subfield></occ>` +
		`<occ><subfield tag=""><![CDATA[beta]]></subfield></occ>` +
		`</field></record>`
	if got := rec.ToXML(); got != want {
		t.Fatalf("ToXML = %q, want %q", got, want)
	}
}

func TestRecordToXMLSubfields(t *testing.T) {
	cfg := DefaultConfig()
	rec := NewRecord(cfg)
	rec.MFN = 1
	if err := rec.Set(24, "^aSmith^bJ."); err != nil {
		t.Fatal(err)
	}
	want := `<record mfn="1" status="active">` +
		`<field tag="24"><occ>` +
		`<subfield tag="a"><![CDATA[Smith]]></subfield>` +
		`<subfield tag="b"><![CDATA[J.]]></subfield>` +
		`</occ></field></record>`
	if got := rec.ToXML(); got != want {
		t.Fatalf("ToXML = %q, want %q", got, want)
	}
}
