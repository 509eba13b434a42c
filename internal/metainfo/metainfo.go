// Copyright (c) 2026, the bt contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metainfo parses .torrent files and computes their canonical
// info-hash, and caches parsed metadata by torrent URL.
package metainfo

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// Meta is the parsed, immutable view of one .torrent file.
type Meta struct {
	// Raw is the undecoded file content.
	Raw []byte
	// Name is the declared file or directory name from the info dict.
	Name string

	infoHash [20]byte
}

// InfoHash returns the 20-byte torrent id: SHA-1 of the canonical info
// encoding for v1 torrents, SHA-256 truncated to 20 bytes when the info
// dict declares meta version 2.
func (m *Meta) InfoHash() [20]byte {
	return m.infoHash
}

func (m *Meta) InfoHashHex() string {
	return hex.EncodeToString(m.infoHash[:])
}

// Parse decodes raw .torrent bytes. The info sub-dictionary is re-encoded
// canonically (bencode sorts dictionary keys as byte strings) before
// hashing, so a source with unsorted keys still yields the standard hash.
func Parse(raw []byte) (*Meta, error) {
	var outer map[string]bencode.RawMessage
	if err := bencode.DecodeBytes(raw, &outer); err != nil {
		return nil, errors.Wrap(err, "decode torrent")
	}

	infoRaw, ok := outer["info"]
	if !ok {
		return nil, errors.New("torrent has no info dictionary")
	}

	var info map[string]interface{}
	if err := bencode.DecodeBytes(infoRaw, &info); err != nil {
		return nil, errors.Wrap(err, "decode info dictionary")
	}

	canonical, err := bencode.EncodeBytes(info)
	if err != nil {
		return nil, errors.Wrap(err, "encode info dictionary")
	}

	meta := &Meta{Raw: raw}
	meta.Name, _ = info["name"].(string)

	switch version, present := info["meta version"]; {
	case !present:
		meta.infoHash = sha1.Sum(canonical)
	case version == int64(2):
		sum := sha256.Sum256(canonical)
		copy(meta.infoHash[:], sum[:20])
	default:
		return nil, errors.Errorf("unsupported meta version: %v", version)
	}

	return meta, nil
}
