package corefmt

import (
	"bytes"
	"testing"

	"github.com/zintix-labs/minelab/sdk/core"
)

func TestSnapshotRoundTrip(t *testing.T) {
	rng := core.Default().New(7)
	snap, err := rng.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	want := rng.Uint64()

	s := EncodeSnap(snap)
	back, err := DecodeSnap(s)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, back); err != nil {
		t.Fatal(err)
	}
	framed, err := ReadFrame(&buf, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := rng.Restore(framed); err != nil {
		t.Fatal(err)
	}
	if got := rng.Uint64(); got != want {
		t.Fatalf("restored stream diverged: %d != %d", got, want)
	}
}

func TestDecodeRejects(t *testing.T) {
	if _, err := DecodeSnap("***"); err == nil {
		t.Fatalf("invalid base64url must fail")
	}
	if _, err := DecodeSnap(""); err == nil {
		t.Fatalf("empty snapshot must fail")
	}

	var buf bytes.Buffer
	_ = WriteFrame(&buf, make([]byte, 64))
	if _, err := ReadFrame(bytes.NewReader(buf.Bytes()), 8); err == nil {
		t.Fatalf("oversized frame must fail")
	}

	flipped := bytes.Clone(buf.Bytes())
	flipped[10] ^= 0xff
	if _, err := ReadFrame(bytes.NewReader(flipped), 0); err == nil {
		t.Fatalf("corrupted payload must fail the checksum")
	}
	if _, err := ReadFrame(bytes.NewReader(buf.Bytes()[:20]), 0); err == nil {
		t.Fatalf("truncated frame must fail")
	}
	if _, err := ReadFrame(bytes.NewReader([]byte("XXXX\x00")), 0); err == nil {
		t.Fatalf("wrong magic must fail")
	}
}

func TestReadFrameLeavesRest(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteFrame(&buf, []byte("first"))
	_ = WriteFrame(&buf, []byte("second"))
	a, err := ReadFrame(&buf, 0)
	if err != nil || string(a) != "first" {
		t.Fatalf("first frame: %q %v", a, err)
	}
	b, err := ReadFrame(&buf, 0)
	if err != nil || string(b) != "second" {
		t.Fatalf("second frame: %q %v", b, err)
	}
}
