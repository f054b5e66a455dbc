// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestAddAndWrite(t *testing.T) {
	c := qt.New(t)

	builder, err := NewBuilder(Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	c.Assert(builder.Add("test", bytes.NewReader([]byte("idunvovkjnreovmegihjbrqlkmfrjnb"))), qt.IsNil)
	c.Assert(builder.Add("test2", bytes.NewReader([]byte("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"))), qt.IsNil)
	c.Assert(builder.files, qt.HasLen, 2)

	var buf bytes.Buffer
	num, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(num, qt.Equals, int64(buf.Len()))
	c.Assert(buf.Bytes()[:MagicLength], qt.DeepEquals, magic[:])

	size, err := binaryToint64(buf.Bytes()[MagicLength : MagicLength+HeaderSizeNumberLength])
	c.Assert(err, qt.IsNil)

	var header Header
	start := int64(MagicLength + HeaderSizeNumberLength)
	c.Assert(gobDecode(&header, buf.Bytes()[start:start+size]), qt.IsNil)
	c.Assert(header.Index, qt.HasLen, 2)
	c.Assert(header.Index[0].Offset, qt.Equals, int64(0))
	c.Assert(header.Index[1].Offset, qt.Equals, header.Index[0].CompressedSize)
	c.Assert(start+size+header.Index[1].Offset+header.Index[1].CompressedSize, qt.Equals, num)
}

func TestAddDuplicate(t *testing.T) {
	c := qt.New(t)

	builder, err := NewBuilder(Header{})
	c.Assert(err, qt.IsNil)
	defer builder.Close()

	c.Assert(builder.Add("test", bytes.NewReader([]byte("a"))), qt.IsNil)
	err = builder.Add("test", bytes.NewReader([]byte("b")))
	c.Assert(errors.Is(err, ErrDuplicate), qt.Equals, true)
}

func TestAddConcurrent(t *testing.T) {
	c := qt.New(t)

	builder, err := NewBuilder(Header{})
	c.Assert(err, qt.IsNil)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			errs <- builder.Add(name, bytes.NewReader(bytes.Repeat([]byte(name), 1024)))
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		c.Assert(err, qt.IsNil)
	}
	c.Assert(builder.Len(), qt.Equals, len(names))

	dir := builder.tempDir
	c.Assert(builder.Close(), qt.IsNil)
	_, err = os.Stat(dir)
	c.Assert(os.IsNotExist(err), qt.Equals, true)
}
