// Package util collects small helpers shared by the command-line tools.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NoFrame marks an image whose name carries no frame number.
const NoFrame = -1

// ImageExtensions are the file extensions picked up when a directory is expanded.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is parsed from names like "frame-12.jpg", or NoFrame.
	Frame int
}

// LoadImageFiles reads the given files and every image file directly inside the given
// directories.
//
// Files named explicitly are read whatever their extension; the decoder decides later whether
// they are images. Results are ordered by frame number, then path.
//
// Arguments:
//   - paths: Files and directories.
//
// Returns:
//   - []ImageFile: The loaded files.
//   - error: Error if a path cannot be read.
func LoadImageFiles(paths ...string) ([]ImageFile, error) {
	var out []ImageFile
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrap(err, "stat input")
		}
		if !info.IsDir() {
			f, err := readImageFile(p)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
			continue
		}

		files, err := LoadDirectoryImageFiles(p)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}

	sortImageFiles(out)
	return out, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
//   - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read image directory")
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !isImageName(entry.Name()) {
			continue
		}
		f, err := readImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sortImageFiles(files)
	return files, nil
}

func readImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrap(err, "read image file")
	}
	return ImageFile{Path: path, Data: data, Frame: frameNumber(path)}, nil
}

func isImageName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func frameNumber(path string) int {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !strings.HasPrefix(stem, "frame-") {
		return NoFrame
	}
	n, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-"))
	if err != nil || n < 0 {
		return NoFrame
	}
	return n
}

func sortImageFiles(files []ImageFile) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Frame != files[j].Frame {
			return files[i].Frame < files[j].Frame
		}
		return files[i].Path < files[j].Path
	})
}
