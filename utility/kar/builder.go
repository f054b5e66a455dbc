// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sync"

	"github.com/pierrec/lz4"
)

// NewBuilder creates a Builder stamped with header.
// Any Index already present in header is replaced by WriteTo.
func NewBuilder(header Header) (*Builder, error) {
	temp, err := ioutil.TempDir("", "karBuilder")
	if err != nil {
		return nil, err
	}
	return &Builder{
		tempDir: temp,
		header:  header,
	}, nil
}

type tempFile struct {

	// Name inside the archive
	Name string

	// TempName is the temporary file holding compressed contents
	TempName string

	// Size in uncompressed state
	Size int64

	Compressed int64
}

// Builder assembles an archive. Archives are immutable once written,
// so every file goes through Add first: its compressed form waits in a
// temporary dir until WriteTo lays the archive out. Close removes the
// temporary dir.
type Builder struct {
	tempDir string
	header  Header

	mutex sync.Mutex
	files []tempFile
}

// Add compresses r under name, returning once compression is done.
// Add may be called from several goroutines at once.
func (b *Builder) Add(name string, data io.Reader) error {
	b.mutex.Lock()
	for _, f := range b.files {
		if f.Name == name {
			b.mutex.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
	}
	b.mutex.Unlock()

	f, err := ioutil.TempFile(b.tempDir, "entry")
	if err != nil {
		return err
	}
	defer f.Close()

	writer := lz4.NewWriter(f)
	written, err := io.Copy(writer, data)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = append(b.files, tempFile{
		Name:       name,
		TempName:   f.Name(),
		Size:       written,
		Compressed: info.Size(),
	})
	return nil
}

// Len is the number of files added so far.
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo writes the complete archive to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	header.Index = nil
	var offset int64
	for _, v := range b.files {
		header.Index = append(header.Index, IndexEntry{
			Name:           v.Name,
			Size:           v.Size,
			CompressedSize: v.Compressed,
			Offset:         offset,
		})
		offset += v.Compressed
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, chunk := range [][]byte{magic[:], int64ToBinary(int64(len(rawHeader))), rawHeader} {
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	for _, v := range b.files {
		n, err := copyFile(w, v.TempName)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func copyFile(w io.Writer, name string) (int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Close removes the compressed files, the Builder cannot be used afterwards.
func (b *Builder) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = nil
	return os.RemoveAll(b.tempDir)
}
