package packager

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/ligustah/mapmaker/internal/job"
)

// Archive zips the tree at srcDir into destZip. Entries are stored under a
// top-level folder called name, in lexical walk order.
func Archive(srcDir, name, destZip string) (err error) {
	out, err := os.Create(destZip)
	if err != nil {
		return fmt.Errorf("packager: create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("packager: close archive: %w", cerr)
		}
		if err != nil {
			os.Remove(destZip)
		}
	}()

	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		entry := path.Join(name, filepath.ToSlash(rel))

		if d.IsDir() {
			_, err := zw.CreateHeader(&zip.FileHeader{Name: entry + "/", Method: zip.Store})
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addFile(zw, p, entry)
	})
	if walkErr != nil {
		zw.Close()
		return fmt.Errorf("packager: archive %s: %w", srcDir, walkErr)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("packager: finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, src, entry string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = entry
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Package writes the descriptor into the tile tree of the map called name
// and archives the tree to workDir/name.zip. It returns the archive path.
func Package(workDir, name string, bounds job.Bounds) (string, error) {
	tree := filepath.Join(workDir, name)
	if info, err := os.Stat(tree); err != nil || !info.IsDir() {
		return "", fmt.Errorf("packager: tile tree %s is missing", tree)
	}

	if _, err := WriteDescriptor(tree, name, bounds); err != nil {
		return "", err
	}

	archive := filepath.Join(workDir, name+job.ArchiveExt)
	if err := Archive(tree, name, archive); err != nil {
		return "", err
	}
	return archive, nil
}
