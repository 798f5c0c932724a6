package filesource

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// File is a selectable handle supplied by a picker. Only the name and the byte
// content are ever read.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Path returns a File backed by a file on the local filesystem. The file is
// opened lazily on every Open call.
func Path(path string) File {
	return pathFile(path)
}

type pathFile string

func (p pathFile) Name() string { return filepath.Base(string(p)) }

func (p pathFile) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

// Bytes returns an in-memory File. The slice is not copied.
func Bytes(name string, data []byte) File {
	return &memoryFile{name: name, data: data}
}

type memoryFile struct {
	name string
	data []byte
}

func (m *memoryFile) Name() string { return m.name }

func (m *memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

// Buffer reads a multipart upload fully into memory so it outlives the request
// that carried it.
func Buffer(header *multipart.FileHeader) (File, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return Bytes(header.Filename, data), nil
}
