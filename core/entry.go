package core

import (
	"encoding/binary"
	"fmt"
)

// Kind classifies the filesystem object a key refers to.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EntrySize is the fixed on-disk size of an entry record, in bytes.
//
//	offset  size  field
//	0       8     opstamp (u64 LE)
//	8       1     kind (u8)
//	9       3     padding
//	12      4     content_type (u32 LE, reserved, zero)
//	16      8     last_modified (u64 LE micros)
//	24      8     last_accessed (u64 LE micros)
const EntrySize = 32

// Entry is the fixed-size metadata record stored for a key at its latest
// opstamp. Deletion entries carry only a meaningful opstamp; the remaining
// fields are zeroed.
type Entry struct {
	Opstamp      Opstamp
	Kind         Kind
	ContentType  uint32
	LastModified uint64
	LastAccessed uint64
}

// toBytes serializes the entry to its bit-exact on-disk form.
func (e Entry) toBytes() [EntrySize]byte {
	var buf [EntrySize]byte

	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.Opstamp))
	buf[8] = byte(e.Kind)
	// buf[9:12] padding, left zero
	binary.LittleEndian.PutUint32(buf[12:16], e.ContentType)
	binary.LittleEndian.PutUint64(buf[16:24], e.LastModified)
	binary.LittleEndian.PutUint64(buf[24:32], e.LastAccessed)

	return buf
}

// entryFromBytes decodes an entry record. b must be exactly EntrySize bytes;
// any other length signals corruption to the caller (see segment.getEntry).
func entryFromBytes(b []byte) (Entry, error) {
	if len(b) != EntrySize {
		return Entry{}, fmt.Errorf("%w: entry record must be %d bytes, got %d", ErrCorrupt, EntrySize, len(b))
	}

	return Entry{
		Opstamp:      Opstamp(binary.LittleEndian.Uint64(b[0:8])),
		Kind:         Kind(b[8]),
		ContentType:  binary.LittleEndian.Uint32(b[12:16]),
		LastModified: binary.LittleEndian.Uint64(b[16:24]),
		LastAccessed: binary.LittleEndian.Uint64(b[24:32]),
	}, nil
}

// FilesystemEntry is the input record an external collaborator (a directory
// walker, an embedding process) feeds to Index.Insert.
type FilesystemEntry struct {
	Path         string
	Kind         Kind
	LastModified uint64 // microseconds since epoch
	LastAccessed uint64 // microseconds since epoch
}
