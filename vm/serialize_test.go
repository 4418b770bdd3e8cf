package vm

import "testing"

func TestSerializeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	src := []string{
		"SET 10 r1",
		"SETF 2.5 r2",
		"ADD r1 r2",
		"CALL sub",
		"HALT",
		"sub:",
		"RET",
	}
	code, err := Assemble(cfg, "test.uvm", src)
	assert(t, err == nil, "assemble failed: %v", err)

	binaryData, err := Serialize(cfg, code)
	assert(t, err == nil, "serialize failed: %v", err)

	got, err := Deserialize(cfg, binaryData)
	assert(t, err == nil, "deserialize failed: %v", err)
	assert(t, len(got) == len(code), "round trip changed atom count: got %d, want %d", len(got), len(code))

	for i := range code {
		assert(t, got[i].String() == code[i].String(), "atom %d mismatch: got %s, want %s", i, got[i], code[i])
	}
}

func TestDeserializeRejectsBadSignature(t *testing.T) {
	cfg := DefaultConfig()
	junk := append([]byte("NOT-A-UVM-FILE!"), cfg.Version)
	_, err := Deserialize(cfg, junk)
	assert(t, err != nil, "expected a signature error")
}

func TestDeserializeRejectsShortInput(t *testing.T) {
	cfg := DefaultConfig()
	_, err := Deserialize(cfg, []byte{0x01, 0x02})
	assert(t, err != nil, "expected a too-short error")
}

func TestDeserializeRejectsBadVersion(t *testing.T) {
	cfg := DefaultConfig()
	bad := append([]byte{}, cfg.Signature...)
	bad = append(bad, cfg.Version+1)
	_, err := Deserialize(cfg, bad)
	assert(t, err != nil, "expected a version error")
}
