// Package checksum computes and verifies sha256/sha512 digests of
// distfiles in a single streaming pass, grounded on ruyipkg/checksum.py's
// Checksummer and generalized to a parallel multi-hash writer per
// spec.md §4.2.
package checksum

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Kind is a supported checksum algorithm name.
type Kind string

const (
	SHA256 Kind = "sha256"
	SHA512 Kind = "sha512"
)

// Supported lists every checksum kind ruyi understands, mirroring
// ruyipkg/checksum.py's SUPPORTED_CHECKSUM_KINDS.
var Supported = []Kind{SHA256, SHA512}

func newHash(kind Kind) (hash.Hash, error) {
	switch kind {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("checksum algorithm %q not supported", kind)
	}
}

// Sums is a set of expected or computed hex-encoded digests keyed by kind.
type Sums map[Kind]string

// Compute streams r through every hasher in kinds in a single pass and
// returns their hex digests, the same one-pass-many-hashes strategy as
// ruyipkg/checksum.py's Checksummer.compute.
func Compute(r io.Reader, kinds []Kind) (Sums, error) {
	hashers := make(map[Kind]hash.Hash, len(kinds))
	writers := make([]io.Writer, 0, len(kinds))
	for _, k := range kinds {
		h, err := newHash(k)
		if err != nil {
			return nil, err
		}
		hashers[k] = h
		writers = append(writers, h)
	}

	mw := io.MultiWriter(writers...)
	if _, err := io.Copy(mw, r); err != nil {
		return nil, fmt.Errorf("reading input for checksum: %w", err)
	}

	out := make(Sums, len(kinds))
	for k, h := range hashers {
		out[k] = hex.EncodeToString(h.Sum(nil))
	}
	return out, nil
}

// ComputeFile opens path and computes digests for every kind declared in
// want (ignoring want's values, only its keys), or for every Supported
// kind if want is nil.
func ComputeFile(path string, want Sums) (Sums, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s for checksum: %w", path, err)
	}
	defer f.Close()

	kinds := Supported
	if want != nil {
		kinds = make([]Kind, 0, len(want))
		for k := range want {
			kinds = append(kinds, k)
		}
	}
	return Compute(f, kinds)
}

// Verify checks that the file at path matches every digest in want,
// returning a *ruyierr.Error with Kind ChecksumMismatch naming the first
// mismatching algorithm found.
func Verify(path string, want Sums) error {
	if len(want) == 0 {
		return nil
	}

	got, err := ComputeFile(path, want)
	if err != nil {
		return err
	}

	for kind, expected := range want {
		if got[kind] != expected {
			return ruyierr.New("checksum", ruyierr.ChecksumMismatch, path,
				fmt.Sprintf("wrong %s checksum: want %s, got %s", kind, expected, got[kind]), nil)
		}
	}
	return nil
}
