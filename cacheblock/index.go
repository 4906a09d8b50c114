// Package cacheblock implements the on-disk packed binary container for one
// domain's cached asset objects (C1): an in-memory header plus one or more
// bounded-size sub-blob payload files.
//
// © 2025 assetcore authors. MIT License.
package cacheblock

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	headerMagic = "LFCB"
	footerMagic = "BFCL"
	indexVersion = uint32(1)

	// objectEntrySize is the encoded size in bytes of one entry:
	// object_id u32, uid u32, sub_blob u16, offset u64, size u32.
	objectEntrySize = 4 + 4 + 2 + 8 + 4
)

// objectEntry is one row of the block's object table.
type objectEntry struct {
	ObjectID uint32
	UID      uint32
	SubBlob  uint16
	Offset   uint64
	Size     uint32
}

// encodeIndex serialises the header + object table + footer per the
// cache file byte layout: magic LFCB, version u32, domain-name length u16 +
// UTF-8 bytes, object count u32, entry array, footer magic BFCL.
func encodeIndex(domain string, entries []objectEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(headerMagic)
	_ = binary.Write(&buf, binary.LittleEndian, indexVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(domain)))
	buf.WriteString(domain)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, e.ObjectID)
		_ = binary.Write(&buf, binary.LittleEndian, e.UID)
		_ = binary.Write(&buf, binary.LittleEndian, e.SubBlob)
		_ = binary.Write(&buf, binary.LittleEndian, e.Offset)
		_ = binary.Write(&buf, binary.LittleEndian, e.Size)
	}
	buf.WriteString(footerMagic)
	return buf.Bytes()
}

// decodeIndex parses bytes produced by encodeIndex. Any magic or length
// mismatch marks the block unreadable.
func decodeIndex(data []byte) (domain string, entries []objectEntry, err error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err = r.Read(magic); err != nil || string(magic) != headerMagic {
		return "", nil, fmt.Errorf("cacheblock: bad header magic")
	}

	var version uint32
	if err = binary.Read(r, binary.LittleEndian, &version); err != nil {
		return "", nil, fmt.Errorf("cacheblock: truncated version: %w", err)
	}
	if version != indexVersion {
		return "", nil, fmt.Errorf("cacheblock: unsupported index version %d", version)
	}

	var domainLen uint16
	if err = binary.Read(r, binary.LittleEndian, &domainLen); err != nil {
		return "", nil, fmt.Errorf("cacheblock: truncated domain length: %w", err)
	}
	domainBytes := make([]byte, domainLen)
	if _, err = r.Read(domainBytes); err != nil {
		return "", nil, fmt.Errorf("cacheblock: truncated domain name: %w", err)
	}
	domain = string(domainBytes)

	var count uint32
	if err = binary.Read(r, binary.LittleEndian, &count); err != nil {
		return "", nil, fmt.Errorf("cacheblock: truncated object count: %w", err)
	}

	entries = make([]objectEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var e objectEntry
		if err = binary.Read(r, binary.LittleEndian, &e.ObjectID); err != nil {
			return "", nil, fmt.Errorf("cacheblock: truncated entry %d: %w", i, err)
		}
		if err = binary.Read(r, binary.LittleEndian, &e.UID); err != nil {
			return "", nil, fmt.Errorf("cacheblock: truncated entry %d: %w", i, err)
		}
		if err = binary.Read(r, binary.LittleEndian, &e.SubBlob); err != nil {
			return "", nil, fmt.Errorf("cacheblock: truncated entry %d: %w", i, err)
		}
		if err = binary.Read(r, binary.LittleEndian, &e.Offset); err != nil {
			return "", nil, fmt.Errorf("cacheblock: truncated entry %d: %w", i, err)
		}
		if err = binary.Read(r, binary.LittleEndian, &e.Size); err != nil {
			return "", nil, fmt.Errorf("cacheblock: truncated entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}

	footer := make([]byte, 4)
	if _, err = r.Read(footer); err != nil || string(footer) != footerMagic {
		return "", nil, fmt.Errorf("cacheblock: bad footer magic")
	}

	return domain, entries, nil
}
