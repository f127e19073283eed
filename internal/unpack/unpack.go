// Package unpack implements C4: dispatching a distfile to the extraction
// method its manifest declares. Grounded on ruyipkg/unpack.py's
// do_unpack/do_unpack_tar dispatch, generalized from tar-only (shelled to
// `tar`) to the full method table of spec.md §4.4, implemented as
// streaming in-process decompression via klauspost/compress (zstd),
// compress/gzip (stdlib), ulikunitz/xz, pierrec/lz4, compress/bzip2 (stdlib; no third-party bzip2
// decompressor appears anywhere in the pack) and archive/{tar,zip}.
package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/ulikunitz/xz"

	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

// Method names the extraction strategy for a distfile, mirroring
// spec.md §4.4's UnpackMethod table.
type Method string

const (
	MethodTar     Method = "tar"
	MethodTarGz   Method = "tar.gz"
	MethodTarBz2  Method = "tar.bz2"
	MethodTarLz4  Method = "tar.lz4"
	MethodTarXz   Method = "tar.xz"
	MethodTarZst  Method = "tar.zst"
	MethodTarAuto Method = "tar.auto"
	MethodZip     Method = "zip"
	MethodDeb     Method = "deb"
	MethodGz      Method = "gz"
	MethodBz2     Method = "bz2"
	MethodLz4     Method = "lz4"
	MethodXz      Method = "xz"
	MethodZst     Method = "zst"
	MethodRaw     Method = "raw"
	MethodAuto    Method = "auto"
)

// suffixTable drives MethodAuto's case-insensitive derivation from the
// file name, checked longest-suffix-first.
var suffixTable = []struct {
	suffix string
	method Method
}{
	{".tar.gz", MethodTarGz},
	{".tgz", MethodTarGz},
	{".tar.bz2", MethodTarBz2},
	{".tbz2", MethodTarBz2},
	{".tar.lz4", MethodTarLz4},
	{".tar.xz", MethodTarXz},
	{".tar.zst", MethodTarZst},
	{".tar", MethodTar},
	{".zip", MethodZip},
	{".deb", MethodDeb},
	{".gz", MethodGz},
	{".bz2", MethodBz2},
	{".lz4", MethodLz4},
	{".xz", MethodXz},
	{".zst", MethodZst},
}

// Resolve derives a Method from a filename for MethodAuto/MethodTarAuto.
func Resolve(filename string, wantTar bool) (Method, error) {
	lower := strings.ToLower(filename)
	for _, entry := range suffixTable {
		if strings.HasSuffix(lower, entry.suffix) {
			if wantTar && !strings.HasPrefix(string(entry.method), "tar") && entry.method != MethodTar {
				continue
			}
			return entry.method, nil
		}
	}
	return "", ruyierr.New("unpack", ruyierr.UnrecognizedPackFormat, filename,
		"no known archive suffix matched", nil)
}

// Options configures an unpack operation.
type Options struct {
	// StripComponents removes this many leading path components from
	// every tar/zip entry, mirroring tar's --strip-components.
	StripComponents int
	// SymlinkFallbackName, if set and Method is MethodRaw, causes Unpack
	// to create a symlink named SymlinkFallbackName inside Dest pointing
	// at the source file instead of copying it (unpack_or_symlink).
	SymlinkFallbackName string
}

// Unpack extracts src into dest according to method.
func Unpack(src, dest string, method Method, opts Options) error {
	if method == MethodAuto {
		resolved, err := Resolve(src, false)
		if err != nil {
			return err
		}
		method = resolved
	}

	switch method {
	case MethodTar:
		return unpackTar(src, dest, opts, identity)
	case MethodTarGz:
		return unpackTar(src, dest, opts, gzipReader)
	case MethodTarBz2:
		return unpackTar(src, dest, opts, bzip2Reader)
	case MethodTarLz4:
		return unpackTar(src, dest, opts, lz4Reader)
	case MethodTarXz:
		return unpackTar(src, dest, opts, xzReader)
	case MethodTarZst:
		return unpackTar(src, dest, opts, zstdReader)
	case MethodTarAuto:
		resolved, err := Resolve(src, true)
		if err != nil {
			return err
		}
		return Unpack(src, dest, resolved, opts)
	case MethodZip:
		return unpackZip(src, dest, opts)
	case MethodDeb:
		return unpackDeb(src, dest, opts)
	case MethodGz:
		return unpackSingleFile(src, dest, gzipReader)
	case MethodBz2:
		return unpackSingleFile(src, dest, bzip2Reader)
	case MethodLz4:
		return unpackSingleFile(src, dest, lz4Reader)
	case MethodXz:
		return unpackSingleFile(src, dest, xzReader)
	case MethodZst:
		return unpackSingleFile(src, dest, zstdReader)
	case MethodRaw:
		return unpackRaw(src, dest, opts)
	default:
		return ruyierr.New("unpack", ruyierr.UnrecognizedPackFormat, src,
			fmt.Sprintf("unrecognized unpack method %q", method), nil)
	}
}

type decompressFunc func(r io.Reader) (io.Reader, func() error, error)

func identity(r io.Reader) (io.Reader, func() error, error) { return r, func() error { return nil }, nil }

func gzipReader(r io.Reader) (io.Reader, func() error, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return gr, gr.Close, nil
}

func bzip2Reader(r io.Reader) (io.Reader, func() error, error) {
	return bzip2.NewReader(r), func() error { return nil }, nil
}

func lz4Reader(r io.Reader) (io.Reader, func() error, error) {
	return lz4.NewReader(r), func() error { return nil }, nil
}

func xzReader(r io.Reader) (io.Reader, func() error, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening xz stream: %w", err)
	}
	return xr, func() error { return nil }, nil
}

func zstdReader(r io.Reader) (io.Reader, func() error, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("opening zstd stream: %w", err)
	}
	return zr, func() error { zr.Close(); return nil }, nil
}

// unpackTar streams src through decompress, then extracts each tar entry
// into dest after stripping StripComponents path components. An entry
// whose remaining path is empty (fully stripped) or escapes dest is
// skipped/rejected, preserving the invariant from spec.md §8 that a
// strip-components unpack never produces a path containing the stripped
// prefix.
func unpackTar(src, dest string, opts Options, decompress decompressFunc) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	r, closeFn, err := decompress(f)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating dest %s: %w", dest, err)
	}

	return extractTarStream(r, dest, opts)
}

// extractTarStream walks a decompressed tar stream and extracts each
// entry into dest, honoring opts.StripComponents. Shared by unpackTar and
// the deb data.tar.* member extraction.
func extractTarStream(r io.Reader, dest string, opts Options) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		relPath, ok := stripComponents(hdr.Name, opts.StripComponents)
		if !ok {
			continue
		}

		target, err := safeJoin(dest, relPath)
		if err != nil {
			return err
		}

		if err := extractTarEntry(hdr, tr, target); err != nil {
			return err
		}
	}
}

func extractTarEntry(hdr *tar.Header, r io.Reader, target string) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(hdr.Mode)|0700)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode)|0600)
		if err != nil {
			return fmt.Errorf("creating %s: %w", target, err)
		}
		defer out.Close()
		if _, err := io.Copy(out, r); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		return nil
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	default:
		return nil
	}
}

// stripComponents removes n leading path components from name. Returns
// ok=false when stripping consumes the whole path (nothing left to
// extract), matching tar --strip-components' behavior of dropping such
// entries.
func stripComponents(name string, n int) (string, bool) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "/")
	if n <= 0 {
		return clean, clean != ""
	}
	parts := strings.Split(clean, "/")
	if len(parts) <= n {
		return "", false
	}
	rest := strings.Join(parts[n:], "/")
	return rest, rest != ""
}

// safeJoin joins dest and rel, rejecting any result that escapes dest
// (a path-traversal guard for ".." entries in untrusted archives).
func safeJoin(dest, rel string) (string, error) {
	target := filepath.Join(dest, rel)
	destClean := filepath.Clean(dest) + string(filepath.Separator)
	if !strings.HasPrefix(target+string(filepath.Separator), destClean) && filepath.Clean(target) != filepath.Clean(dest) {
		return "", fmt.Errorf("archive entry %q escapes destination %q", rel, dest)
	}
	return target, nil
}

func unpackZip(src, dest string, opts Options) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening zip %s: %w", src, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating dest %s: %w", dest, err)
	}

	for _, zf := range zr.File {
		relPath, ok := stripComponents(zf.Name, opts.StripComponents)
		if !ok {
			continue
		}
		target, err := safeJoin(dest, relPath)
		if err != nil {
			return err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry %s: %w", zf.Name, err)
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, zf.Mode()|0600)
		if err != nil {
			rc.Close()
			return fmt.Errorf("creating %s: %w", target, err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return fmt.Errorf("writing %s: %w", target, copyErr)
		}
	}
	return nil
}

func unpackSingleFile(src, dest string, decompress decompressFunc) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	r, closeFn, err := decompress(f)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating dest %s: %w", dest, err)
	}

	outName := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	outPath := filepath.Join(dest, outName)
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("decompressing into %s: %w", outPath, err)
	}
	return nil
}

func unpackRaw(src, dest string, opts Options) error {
	if opts.SymlinkFallbackName != "" {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}
		linkPath := filepath.Join(dest, opts.SymlinkFallbackName)
		_ = os.Remove(linkPath)
		absSrc, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		return os.Symlink(absSrc, linkPath)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	outPath := filepath.Join(dest, filepath.Base(src))
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
