package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Blob layout, version 1: version byte, three length-prefixed strings
// (identity, organization, role), 32-byte refresh hash, then CreatedAt
// and ExpiresAt as big-endian int64 unix seconds. The rotation Lua
// script parses this layout byte for byte; changing it requires a new
// version and a matching script update.
const sessionFormatVersion = 1

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersion)

	if len(s.IdentityID) > 255 {
		return nil, errors.New("identityID too long")
	}
	buf.WriteByte(byte(len(s.IdentityID)))
	buf.WriteString(s.IdentityID)

	if len(s.OrgID) > 255 {
		return nil, errors.New("orgID too long")
	}
	buf.WriteByte(byte(len(s.OrgID)))
	buf.WriteString(s.OrgID)

	if len(s.Role) > 255 {
		return nil, errors.New("role too long")
	}
	buf.WriteByte(byte(len(s.Role)))
	buf.WriteString(s.Role)

	buf.Write(s.RefreshHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersion {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	s.IdentityID, err = readString(reader)
	if err != nil {
		return nil, err
	}
	s.OrgID, err = readString(reader)
	if err != nil {
		return nil, err
	}
	s.Role, err = readString(reader)
	if err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}

func readString(reader *bytes.Reader) (string, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
