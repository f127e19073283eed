package unpack

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// arMagic is the fixed 8-byte header every ar(1) archive starts with.
const arMagic = "!<arch>\n"

// arHeaderLen is the fixed size of each ar(1) member header.
const arHeaderLen = 60

// unpackDeb reads the outer ar(1) archive a .deb is, locates the inner
// data.tar.* member, and extracts it with the requested strip_components.
// No third-party ar(1) reader appears anywhere in the example pack, so
// this parses the (trivially simple, fixed-width) ar format directly
// against the documented layout rather than importing one — see
// DESIGN.md's justification for this one stdlib-only component.
func unpackDeb(src, dest string, opts Options) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic := make([]byte, len(arMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != arMagic {
		return fmt.Errorf("%s is not an ar(1) archive", src)
	}

	for {
		name, size, err := readArHeader(br)
		if err == io.EOF {
			return fmt.Errorf("no data.tar.* member found in %s", src)
		}
		if err != nil {
			return err
		}

		if strings.HasPrefix(name, "data.tar") {
			return unpackDataMember(name, io.LimitReader(br, size), dest, opts)
		}

		// Skip this member's payload (padded to an even byte boundary).
		skip := size
		if skip%2 == 1 {
			skip++
		}
		if _, err := io.CopyN(io.Discard, br, skip); err != nil {
			return fmt.Errorf("skipping ar member %s: %w", name, err)
		}
	}
}

// readArHeader reads one fixed 60-byte ar(1) member header and returns
// the member's trimmed name and payload size.
func readArHeader(r io.Reader) (string, int64, error) {
	buf := make([]byte, arHeaderLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return "", 0, io.EOF
		}
		return "", 0, err
	}

	name := strings.TrimRight(string(buf[0:16]), " ")
	name = strings.TrimSuffix(name, "/") // GNU ar convention
	sizeField := strings.TrimSpace(string(buf[48:58]))
	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed ar header size field %q: %w", sizeField, err)
	}

	return name, size, nil
}

// unpackDataMember dispatches the inner data.tar.* member to the right
// decompressor based on its own suffix.
func unpackDataMember(name string, r io.Reader, dest string, opts Options) error {
	var decompress decompressFunc
	switch {
	case strings.HasSuffix(name, ".tar"):
		decompress = identity
	case strings.HasSuffix(name, ".tar.gz"):
		decompress = gzipReader
	case strings.HasSuffix(name, ".tar.xz"):
		decompress = xzReader
	case strings.HasSuffix(name, ".tar.bz2"):
		decompress = bzip2Reader
	case strings.HasSuffix(name, ".tar.zst"):
		decompress = zstdReader
	default:
		return fmt.Errorf("unrecognized deb data member %q", name)
	}

	dr, closeFn, err := decompress(r)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	return extractTarStream(dr, dest, opts)
}
