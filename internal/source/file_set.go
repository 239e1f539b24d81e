package source

import (
	"crypto/sha256"
	"fmt"
	"os"

	"fortio.org/safecast"
)

// File captures metadata and content for a single source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	lineIdx []uint32
	Hash    [32]byte
}

// LineCol is a human-readable position, both components 1-based.
type LineCol struct {
	Line uint32
	Col  uint32
}

// FileSet manages the source files a program was built from. The backend
// only needs it to resolve diagnostic spans back to line/column positions.
type FileSet struct {
	files []File
	index map[string]FileID
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// Add stores a file, computes its line index and hash, and returns its ID.
func (fs *FileSet) Add(path string, content []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file count overflow: %w", err))
	}
	id := FileID(n)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    path,
		Content: content,
		lineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
	})
	fs.index[path] = id
	return id
}

// Load reads a file from disk and adds it.
func (fs *FileSet) Load(path string) (FileID, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from the caller
	if err != nil {
		return NoFileID, err
	}
	return fs.Add(path, content), nil
}

// Get returns the file for the given ID, or nil when out of range.
func (fs *FileSet) Get(id FileID) *File {
	if int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// Lookup returns the ID of a previously added path.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[path]
	return id, ok
}

// Len returns the number of files.
func (fs *FileSet) Len() int {
	return len(fs.files)
}

// Position resolves a byte offset to line/column.
func (f *File) Position(offset uint32) LineCol {
	if f == nil {
		return LineCol{Line: 1, Col: 1}
	}
	line := uint32(0)
	for line+1 < uint32(len(f.lineIdx)) && f.lineIdx[line+1] <= offset {
		line++
	}
	return LineCol{Line: line + 1, Col: offset - f.lineIdx[line] + 1}
}

// Line returns the text of a 1-based line without its terminator.
func (f *File) Line(line uint32) string {
	if f == nil || line == 0 || int(line) > len(f.lineIdx) {
		return ""
	}
	start := f.lineIdx[line-1]
	end := uint32(len(f.Content))
	if int(line) < len(f.lineIdx) {
		end = f.lineIdx[line] - 1
	}
	return string(f.Content[start:end])
}

func buildLineIndex(content []byte) []uint32 {
	idx := make([]uint32, 1, 64)
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, uint32(i)+1)
		}
	}
	return idx
}
