// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"sort"

	"github.com/pierrec/lz4"
)

// maxHeaderSize bounds the allocation for a corrupted size field.
const maxHeaderSize = 64 << 20

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if num, err := r.ReadAt(prefix, 0); num < len(prefix) {
		if err == nil || err == io.EOF {
			err = ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(prefix[MagicLength:])
	if err != nil || headerSize <= 0 || headerSize > maxHeaderSize {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, int64(len(prefix))); int64(num) < headerSize {
		if err == nil || err == io.EOF {
			err = ErrFileFormat
		}
		return nil, err
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	ar := &Archive{
		reader:     r,
		header:     header,
		dataOffset: int64(len(prefix)) + headerSize,
		index:      make(map[string]IndexEntry, len(header.Index)),
	}
	for _, e := range header.Index {
		ar.index[e.Name] = e
	}
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader     io.ReaderAt
	header     Header
	dataOffset int64
	index      map[string]IndexEntry
}

// Header returns the archive's header, including the index.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the archived files in order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.index))
	for name := range a.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != r.entry.Size {
		return nil, fmt.Errorf("%w: %s is %d bytes, expected %d", ErrFileFormat, name, len(data), r.entry.Size)
	}
	return data, nil
}

// ReadFile is ReadAll, it lets an Archive serve as an asset source.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	return a.ReadAll(name)
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.dataOffset+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:  entry,
		reader: lz4.NewReader(section),
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry  IndexEntry
	reader io.Reader
}

// Size is the uncompressed size of the file
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.reader.Read(p)
}
