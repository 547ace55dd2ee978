package ids

import "testing"

func TestRecordKeyCompare(t *testing.T) {
	a := RecordKey{0x01, 0x02}
	b := RecordKey{0x01, 0x03}
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("expected b > a")
	}
	if a.Compare(a.Clone()) != 0 {
		t.Fatalf("expected clone to compare equal")
	}
}

func TestRecordKeyString(t *testing.T) {
	k := RecordKey{0xf1, 0x54}
	if got, want := k.String(), "0xf154"; got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
}

func TestVolumeChapterOrdering(t *testing.T) {
	if !VolumeID(1).Less(VolumeID(2)) {
		t.Fatalf("expected 1 < 2")
	}
	if !ChapterID(0x01).Less(ChapterID(0x02)) {
		t.Fatalf("expected 0x01 < 0x02")
	}
}
