package opc

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// archiveEpoch is stamped on every entry so identical inputs produce
// identical archives.
var archiveEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// WriteParts writes parts as a zip archive to w. The content-type manifest is
// written first, the rest in lexical order.
func WriteParts(w io.Writer, parts []Part) error {
	sorted := append([]Part(nil), parts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return partOrder(sorted[i].Name, sorted[j].Name)
	})

	zw := zip.NewWriter(w)
	for _, part := range sorted {
		if err := writeZipEntry(zw, part.Name, part.Data); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func partOrder(a, b string) bool {
	if a == ContentTypesPart {
		return b != ContentTypesPart
	}
	if b == ContentTypesPart {
		return false
	}
	return a < b
}

func writeZipEntry(zw *zip.Writer, name string, payload []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveEpoch,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

// ReadParts reads every entry of the zip archive in data.
func ReadParts(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	parts := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name, err := cleanEntryName(file.Name)
		if err != nil {
			return nil, err
		}
		payload, err := readZipEntry(file)
		if err != nil {
			return nil, err
		}
		parts[name] = payload
	}
	return parts, nil
}

// ReadArchiveFile reads every entry of the zip archive stored at path on fs.
func ReadArchiveFile(fs afero.Fs, archivePath string) (map[string][]byte, error) {
	data, err := afero.ReadFile(fs, archivePath)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", archivePath, err)
	}
	return ReadParts(data)
}

func readZipEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", file.Name, err)
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read zip entry %s: %w", file.Name, err)
	}
	return payload, nil
}

func cleanEntryName(name string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if cleaned == "." || strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("unsafe archive entry %q", name)
	}
	return cleaned, nil
}

// Unpack extracts the archive at src into dir on fs and returns the part
// names it wrote.
func Unpack(fs afero.Fs, src, dir string) ([]string, error) {
	parts, err := ReadArchiveFile(fs, src)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(parts))
	for name, payload := range parts {
		if err := WritePartFile(fs, dir, name, payload); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// WritePartFile stores one part below dir, creating parent directories.
func WritePartFile(fs afero.Fs, dir, name string, payload []byte) error {
	target := filepath.Join(dir, filepath.FromSlash(name))
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	if err := afero.WriteFile(fs, target, payload, 0o644); err != nil {
		return fmt.Errorf("write part %s: %w", name, err)
	}
	return nil
}

// ReadPartFile loads one part stored below dir.
func ReadPartFile(fs afero.Fs, dir, name string) ([]byte, error) {
	payload, err := afero.ReadFile(fs, filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("read part %s: %w", name, err)
	}
	return payload, nil
}

// RemovePartFile deletes one part stored below dir. Missing parts are not
// an error.
func RemovePartFile(fs afero.Fs, dir, name string) error {
	err := fs.Remove(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove part %s: %w", name, err)
	}
	return nil
}

// CollectParts loads every regular file below dir as a part.
func CollectParts(fs afero.Fs, dir string) ([]Part, error) {
	var parts []Part
	err := afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		payload, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		parts = append(parts, Part{Name: filepath.ToSlash(rel), Data: payload})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect parts: %w", err)
	}
	return parts, nil
}

// Repack zips every file below dir into dst. The archive is written to a
// sibling temporary file and renamed into place, so a failed repack never
// leaves a partial dst behind.
func Repack(fs afero.Fs, dir, dst string) error {
	parts, err := CollectParts(fs, dir)
	if err != nil {
		return err
	}

	if parent := filepath.Dir(dst); parent != "" {
		if err := fs.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	tmp := dst + ".tmp"
	file, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := WriteParts(file, parts); err != nil {
		_ = file.Close()
		_ = fs.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := fs.Rename(tmp, dst); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("move archive into place: %w", err)
	}
	return nil
}
