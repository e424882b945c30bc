package session

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99, 0})
	if err == nil || !strings.Contains(err.Error(), "unsupported verdict schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestEncodeDecodePositiveVerdict(t *testing.T) {
	storedAt := time.UnixMilli(1700000000123)
	in := Verdict{
		User: &UserProfile{
			ID:        "1",
			Username:  "alice",
			RoleID:    "r-1",
			RoleName:  "company_manager",
			CompanyID: "c-9",
			BranchID:  "",
		},
		StoredAt: storedAt,
		TTL:      5 * time.Minute,
	}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if data[0] != CurrentSchemaVersion {
		t.Fatalf("expected schema byte %d, got %d", CurrentSchemaVersion, data[0])
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.User == nil || *out.User != *in.User {
		t.Fatalf("user mismatch: got %+v want %+v", out.User, in.User)
	}
	if !out.StoredAt.Equal(storedAt) || out.TTL != in.TTL {
		t.Fatalf("timing mismatch: got %v/%v", out.StoredAt, out.TTL)
	}
}

func TestEncodeDecodeNegativeVerdict(t *testing.T) {
	out, err := Decode(mustEncode(t, Verdict{StoredAt: time.UnixMilli(42), TTL: 30 * time.Second}))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Authenticated() {
		t.Fatalf("expected negative verdict, got %+v", out.User)
	}
	if out.TTL != 30*time.Second {
		t.Fatalf("expected 30s ttl, got %v", out.TTL)
	}
}

func TestDecodeLegacyV1Verdict(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(1)
	buf.WriteByte(flagUserPresent)
	for _, s := range []string{"7", "bob", "r-2", "branch"} {
		buf.WriteByte(byte(len(s)))
		buf.WriteString(s)
	}
	_ = binary.Write(&buf, binary.BigEndian, int64(1000))
	_ = binary.Write(&buf, binary.BigEndian, int64(60000))

	out, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode legacy failed: %v", err)
	}
	if out.User == nil || out.User.Username != "bob" || out.User.CompanyID != "" {
		t.Fatalf("unexpected legacy user %+v", out.User)
	}
	if out.TTL != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", out.TTL)
	}
}

func TestEncodeRejectsOversizedField(t *testing.T) {
	_, err := Encode(Verdict{User: &UserProfile{ID: "1", Username: strings.Repeat("x", 256)}})
	if err == nil {
		t.Fatal("expected oversized field error")
	}
}

func TestVerdictExpired(t *testing.T) {
	now := time.Now()
	v := Verdict{StoredAt: now.Add(-31 * time.Second), TTL: 30 * time.Second}
	if !v.Expired(now) {
		t.Fatal("expected verdict to be expired")
	}
	v.TTL = time.Minute
	if v.Expired(now) {
		t.Fatal("expected verdict to be fresh")
	}
}

// FuzzVerdictDecode exercises the binary verdict decoder with arbitrary inputs.
func FuzzVerdictDecode(f *testing.F) {
	encoded, err := Encode(Verdict{
		User:     &UserProfile{ID: "1", Username: "alice", RoleName: "admin"},
		StoredAt: time.UnixMilli(1700000000000),
		TTL:      time.Minute,
	})
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:len(encoded)/2])
	}
	f.Add([]byte{})
	f.Add([]byte{2})
	f.Add([]byte{2, 1, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := Decode(data)
		if err != nil {
			return
		}
		if v.User != nil && v.User.ID == "" {
			t.Fatal("decoded user without id")
		}
		if v.TTL < 0 {
			t.Fatal("decoded negative ttl")
		}
	})
}

func mustEncode(tb testing.TB, v Verdict) []byte {
	tb.Helper()
	data, err := Encode(v)
	if err != nil {
		tb.Fatalf("encode failed: %v", err)
	}
	return data
}
