package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	verdictFormatVersionCurrent = 2
	verdictFormatVersionV1      = 1
)

// CurrentSchemaVersion is the verdict format version written by [Encode].
const CurrentSchemaVersion = verdictFormatVersionCurrent

const flagUserPresent byte = 1

var errFieldTooLong = errors.New("verdict field too long")

// Encode serializes v in the current binary verdict format.
func Encode(v Verdict) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(verdictFormatVersionCurrent)

	if v.User == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(flagUserPresent)
		for _, field := range []string{
			v.User.ID,
			v.User.Username,
			v.User.RoleID,
			v.User.RoleName,
			v.User.CompanyID,
			v.User.BranchID,
		} {
			if err := writeShortString(&buf, field); err != nil {
				return nil, err
			}
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, v.StoredAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, v.TTL.Milliseconds()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a verdict written by any supported format version.
func Decode(data []byte) (Verdict, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Verdict{}, err
	}
	if version != verdictFormatVersionCurrent && version != verdictFormatVersionV1 {
		return Verdict{}, fmt.Errorf("unsupported verdict schema version %d", version)
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return Verdict{}, err
	}

	var v Verdict
	if flags&flagUserPresent != 0 {
		u := &UserProfile{}
		fields := []*string{&u.ID, &u.Username, &u.RoleID, &u.RoleName}
		if version == verdictFormatVersionCurrent {
			fields = append(fields, &u.CompanyID, &u.BranchID)
		}
		for _, dst := range fields {
			s, err := readShortString(reader)
			if err != nil {
				return Verdict{}, err
			}
			*dst = s
		}
		if u.ID == "" {
			return Verdict{}, errors.New("verdict user without id")
		}
		v.User = u
	}

	var storedAt, ttl int64
	if err := binary.Read(reader, binary.BigEndian, &storedAt); err != nil {
		return Verdict{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &ttl); err != nil {
		return Verdict{}, err
	}
	if ttl < 0 {
		return Verdict{}, errors.New("negative verdict ttl")
	}
	v.StoredAt = time.UnixMilli(storedAt)
	v.TTL = time.Duration(ttl) * time.Millisecond

	return v, nil
}

func writeShortString(buf *bytes.Buffer, s string) error {
	if len(s) > 255 {
		return errFieldTooLong
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
