package adapters

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// TarArchiveAdapter writes and reads bundle archives. Output is byte for
// byte reproducible for a given tree, root name, format and mtime.
type TarArchiveAdapter struct{}

func NewTarArchiveAdapter() TarArchiveAdapter {
	return TarArchiveAdapter{}
}

func (a TarArchiveAdapter) Pack(ctx context.Context, srcDir string, rootName string, dest string, format types.ArchiveFormat, mtime time.Time) error {
	paths, err := collectTree(srcDir)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to scan %s", srcDir)).
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pack-*")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg(fmt.Sprintf("failed to create archive in %s", filepath.Dir(dest))).
			WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	compressor, err := newCompressor(tmp, format)
	if err != nil {
		tmp.Close()
		return err
	}
	tw := tar.NewWriter(compressor)
	mtime = mtime.UTC().Truncate(time.Second)
	if err := writeTarDir(tw, rootName+"/", mtime); err != nil {
		tmp.Close()
		return err
	}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		if err := writeTarEntry(tw, srcDir, rootName, rel, mtime); err != nil {
			tmp.Close()
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to archive %s", rel)).
				WithCause(err)
		}
	}
	if err := errors.Join(tw.Close(), compressor.Close()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

// Walk streams every entry of the archive to fn. Regular file bodies are
// only valid for the duration of the callback.
func (a TarArchiveAdapter) Walk(ctx context.Context, archivePath string, fn func(entry types.ArchiveEntry, body io.Reader) error) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("archive not readable: %s", archivePath)).
			WithCause(err)
	}
	defer file.Close()
	format, err := formatFromPath(archivePath)
	if err != nil {
		return err
	}
	buffered := bufio.NewReader(file)
	reader, closeReader, err := newDecompressor(buffered, format)
	if err != nil {
		return corruptArchive(archivePath, err)
	}
	defer closeReader()

	tr := tar.NewReader(reader)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return finishStream(archivePath, reader, buffered)
		}
		if err != nil {
			return corruptArchive(archivePath, err)
		}
		entry := types.ArchiveEntry{
			Name:  strings.TrimSuffix(hdr.Name, "/"),
			Size:  hdr.Size,
			Mode:  hdr.Mode,
			IsDir: hdr.Typeflag == tar.TypeDir,
		}
		switch hdr.Typeflag {
		case tar.TypeDir, tar.TypeReg:
		default:
			return errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("archive %s contains unsupported entry %s", archivePath, hdr.Name))
		}
		if err := fn(entry, tr); err != nil {
			return err
		}
	}
}

// Extract unpacks the archive under destDir, refusing entries that would
// land outside of it.
func (a TarArchiveAdapter) Extract(ctx context.Context, archivePath string, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	return a.Walk(ctx, archivePath, func(entry types.ArchiveEntry, body io.Reader) error {
		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("archive %s entry escapes destination", archivePath)).
				WithCause(err)
		}
		if entry.IsDir {
			return os.MkdirAll(target, 0755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeResourceExhausted).
				WithMsg(fmt.Sprintf("failed to write %s", target)).
				WithCause(err)
		}
		if _, err := io.Copy(out, body); err != nil {
			out.Close()
			return corruptArchive(archivePath, err)
		}
		return out.Close()
	})
}

func collectTree(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return fmt.Errorf("unsupported file type: %s", p)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func writeTarDir(tw *tar.Writer, name string, mtime time.Time) error {
	return tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0755,
		ModTime:  mtime,
		Typeflag: tar.TypeDir,
		Format:   tar.FormatPAX,
	})
}

func writeTarEntry(tw *tar.Writer, srcDir string, rootName string, rel string, mtime time.Time) error {
	full := filepath.Join(srcDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	name := path.Join(rootName, rel)
	if info.IsDir() {
		return writeTarDir(tw, name+"/", mtime)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Size:     info.Size(),
		Mode:     0644,
		ModTime:  mtime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}); err != nil {
		return err
	}
	file, err := os.Open(full)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(tw, file)
	return err
}

func newCompressor(w io.Writer, format types.ArchiveFormat) (io.WriteCloser, error) {
	switch format {
	case types.ArchiveFormatZstd:
		return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	case types.ArchiveFormatGzip:
		gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		gz.ModTime = time.Time{}
		return gz, nil
	case types.ArchiveFormatLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported archive format: %s", format))
	}
}

// finishStream reads past the tar end blocks so the compression trailer
// (gzip crc and size, lz4 end mark and content checksum, zstd frame end)
// is checked, and refuses bytes after the compressed stream.
func finishStream(archivePath string, reader io.Reader, raw *bufio.Reader) error {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return corruptArchive(archivePath, err)
	}
	if _, err := raw.Peek(1); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after compressed stream")
		}
		return corruptArchive(archivePath, err)
	}
	return nil
}

func newDecompressor(r io.Reader, format types.ArchiveFormat) (io.Reader, func(), error) {
	switch format {
	case types.ArchiveFormatZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	case types.ArchiveFormatGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		gz.Multistream(false)
		return gz, func() { gz.Close() }, nil
	default:
		return lz4.NewReader(r), func() {}, nil
	}
}

func formatFromPath(p string) (types.ArchiveFormat, error) {
	for _, format := range []types.ArchiveFormat{types.ArchiveFormatZstd, types.ArchiveFormatGzip, types.ArchiveFormatLZ4} {
		if strings.HasSuffix(p, "."+format.Extension()) {
			return format, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("unrecognised archive extension: %s", filepath.Base(p)))
}

func safeJoin(base string, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("invalid archive path: %q", name)
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute archive path: %q", name)
	}
	target := filepath.Join(base, clean)
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive path escapes destination: %q", name)
	}
	return target, nil
}

func corruptArchive(archivePath string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeDataLoss).
		WithMsg(fmt.Sprintf("archive %s is corrupt or truncated", archivePath)).
		WithCause(err)
}

var _ ports.ArchivePort = TarArchiveAdapter{}
