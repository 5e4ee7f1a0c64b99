// Package contenthash derives deterministic isolation keys from diagram
// content. Two editors holding the same (content, name) pair share one
// draft slot; editors holding different files never collide.
package contenthash

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Size is the length in hex characters of every id produced by Hash.
const Size = 64

// DefaultPrefix namespaces storage keys.
const DefaultPrefix = "diagramdesk"

// Kind selects the draft slot a storage key addresses.
type Kind string

const (
	KindAutosave Kind = "autosave"
	KindManual   Kind = "manual"
)

// ParseKind maps s to a Kind. Unknown values map to KindAutosave.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindManual:
		return KindManual
	default:
		return KindAutosave
	}
}

// domainKey is the BLAKE3 key for content isolation hashes. Keyed hashing
// keeps these ids disjoint from plain BLAKE3 digests of the same bytes.
var domainKey = [32]byte{}

func init() {
	copy(domainKey[:], "diagramdesk.content-isolation.v1")
}

// Digest hashes a framed message to 32 bytes.
type Digest func(msg []byte) [32]byte

// Blake3 is the default Digest.
func Blake3(msg []byte) [32]byte {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("contenthash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(msg)
	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum
}

// Index computes content ids and namespaced storage keys.
type Index struct {
	digest Digest
	prefix string
}

// Option configures an Index.
type Option func(*Index)

// WithDigest replaces the digest. A nil digest selects the rolling checksum.
func WithDigest(d Digest) Option {
	return func(i *Index) {
		i.digest = d
	}
}

// WithPrefix sets the storage key namespace.
func WithPrefix(prefix string) Option {
	return func(i *Index) {
		if prefix != "" {
			i.prefix = prefix
		}
	}
}

// New creates an Index using BLAKE3 unless configured otherwise.
func New(opts ...Option) *Index {
	i := &Index{digest: Blake3, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Hash returns the stable id of (content, name) as Size lowercase hex characters.
func (i *Index) Hash(content, name string) string {
	msg := frame(content, name)
	if i.digest == nil {
		return Checksum(msg)
	}
	sum := i.digest(msg)
	return hex.EncodeToString(sum[:])
}

// StorageKey returns the namespaced key of the draft slot for stableID.
func (i *Index) StorageKey(stableID string, kind Kind) string {
	if kind != KindManual {
		kind = KindAutosave
	}
	return i.prefix + ":" + string(kind) + ":" + stableID
}

// Prefix returns the storage key namespace.
func (i *Index) Prefix() string {
	return i.prefix
}

var defaultIndex = New()

// Hash computes the stable id of (content, name) with the default Index.
func Hash(content, name string) string {
	return defaultIndex.Hash(content, name)
}

// StorageKey returns the namespaced key of the draft slot for stableID
// with the default Index.
func StorageKey(stableID string, kind Kind) string {
	return defaultIndex.StorageKey(stableID, kind)
}

// frame encodes name and content unambiguously: the name length as a
// big-endian uint64 followed by name and content bytes.
func frame(content, name string) []byte {
	msg := make([]byte, 8, 8+len(name)+len(content))
	binary.BigEndian.PutUint64(msg, uint64(len(name)))
	msg = append(msg, name...)
	msg = append(msg, content...)
	return msg
}
