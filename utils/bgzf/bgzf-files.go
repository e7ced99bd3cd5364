// ccsprep: filtering and statistics for long-read consensus sequencing data.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// Package bgzf reads and writes the blocked gzip format used by BAM
// files. See http://samtools.github.io/hts-specs/SAMv1.pdf - Section 4.1.
//
// Blocks are inflated and deflated in parallel by a pargo pipeline,
// but the bytes are always delivered in file order.
package bgzf

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/exascience/pargo/pipeline"
)

// IsGzip determines if the given byte scanner produces a gzip
// stream. It uses ReadByte and UnreadByte to check only the initial
// byte from the input.
func IsGzip(scanner io.ByteScanner) (bool, error) {
	b, err := scanner.ReadByte()
	if err != nil {
		return false, err
	}
	if err := scanner.UnreadByte(); err != nil {
		return false, err
	}
	return b == 0x1f, nil
}

const (
	maxBlockSize = 65536

	// maxDataSize leaves room for incompressible data to still fit
	// into a block of maxBlockSize bytes after deflating.
	maxDataSize = 0xff00
)

// eofMarker is the empty block that terminates every BGZF file.
var eofMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// blockHeader is the gzip member header of a BGZF block, with a
// placeholder for the BSIZE field at offset 16.
var blockHeader = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x00, 0x00,
}

type block struct {
	data  []byte
	crc32 uint32
	size  uint32
}

var blockPool = sync.Pool{New: func() interface{} {
	return &block{data: make([]byte, 0, maxBlockSize)}
}}

type (
	// Reader reads from a BGZF file. It implements io.ReadCloser.
	Reader struct {
		err     error
		r       io.Reader
		gz      *gzip.Reader
		p       pipeline.Pipeline
		wait    sync.WaitGroup
		channel chan *block
		ctx     context.Context
		cancel  func()
		data    interface{}
		index   int
		current *block
	}

	// blockSource is the pipeline.Source view of a Reader that
	// produces raw, still compressed blocks.
	blockSource Reader
)

func (src *blockSource) readBlock() (b *block, err error) {
	extra := src.gz.Extra
	var slen int
	for i := 0; i+4 <= len(extra); i += 4 + slen {
		slen = int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if extra[i] != 'B' || extra[i+1] != 'C' || slen != 2 {
			continue
		}
		bsize := int(binary.LittleEndian.Uint16(extra[i+4 : i+6]))
		b = blockPool.Get().(*block)
		b.data = b.data[:bsize-len(extra)-19]
		if _, err = io.ReadFull(src.r, b.data); err != nil {
			return nil, fmt.Errorf("%v, while reading a BGZF block", err)
		}
		var tail [8]byte
		if _, err = io.ReadFull(src.r, tail[:]); err != nil {
			return nil, fmt.Errorf("%v, while reading a BGZF block trailer", err)
		}
		b.crc32 = binary.LittleEndian.Uint32(tail[0:4])
		b.size = binary.LittleEndian.Uint32(tail[4:8])
		if err = src.gz.Reset(src.r); err == io.EOF {
			if !bytes.Equal(b.data, []byte{3, 0}) || b.crc32 != 0 || b.size != 0 {
				err = errors.New("invalid BGZF file: does not end in proper EOF marker")
			}
		} else if err != nil {
			err = fmt.Errorf("%v, while reading a BGZF block header", err)
		}
		return b, err
	}
	return nil, errors.New("missing BC extra subfield in BGZF header")
}

// Err implements the method of the pipeline.Source interface.
func (src *blockSource) Err() error {
	if src.err != io.EOF {
		return src.err
	}
	return nil
}

// Prepare implements the method of the pipeline.Source interface.
func (*blockSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (src *blockSource) Fetch(_ int) (fetched int) {
	if src.err != nil {
		return 0
	}
	b, err := src.readBlock()
	if err != nil {
		src.err = err
		src.data = nil
		return 0
	}
	src.data = b
	return 1
}

// Data implements the method of the pipeline.Source interface.
func (src *blockSource) Data() interface{} {
	return src.data
}

var flateReaderPool sync.Pool

func (bgzf *Reader) inflate(_ int, data interface{}) interface{} {
	compressed := data.(*block)
	input := bytes.NewReader(compressed.data)
	var flateReader io.ReadCloser
	if pooled := flateReaderPool.Get(); pooled == nil {
		flateReader = flate.NewReader(input)
	} else {
		flateReader = pooled.(io.ReadCloser)
		if err := flateReader.(flate.Resetter).Reset(input, nil); err != nil {
			flateReader = flate.NewReader(input)
		}
	}
	uncompressed := blockPool.Get().(*block)
	uncompressed.data = uncompressed.data[:int(compressed.size)]
	if _, err := io.ReadFull(flateReader, uncompressed.data); err == io.EOF {
		bgzf.p.SetErr(io.ErrUnexpectedEOF)
	} else if err != nil {
		bgzf.p.SetErr(err)
	} else if crc32.ChecksumIEEE(uncompressed.data) != compressed.crc32 {
		bgzf.p.SetErr(errors.New("invalid CRC-32 value for a data block in a BGZF file"))
	}
	if err := flateReader.Close(); err != nil {
		bgzf.p.SetErr(err)
	}
	flateReaderPool.Put(flateReader)
	blockPool.Put(compressed)
	return uncompressed
}

// NewReader returns a Reader for the given flate.Reader.
func NewReader(r flate.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%v, while opening a BGZF file", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	bgzf := &Reader{
		r:       r,
		gz:      gz,
		channel: make(chan *block, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	bgzf.p.Source((*blockSource)(bgzf))
	bgzf.p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(bgzf.inflate)),
		pipeline.StrictOrd(pipeline.ReceiveAndFinalize(func(_ int, data interface{}) interface{} {
			select {
			case <-bgzf.ctx.Done():
			case bgzf.channel <- data.(*block):
			}
			return nil
		}, func() {
			close(bgzf.channel)
		})),
	)
	bgzf.wait.Add(1)
	go func() {
		defer bgzf.wait.Done()
		bgzf.p.Run()
	}()
	return bgzf, nil
}

// Close implements the method of io.Closer.
func (bgzf *Reader) Close() error {
	bgzf.cancel()
	bgzf.wait.Wait()
	if err := bgzf.gz.Close(); err != nil {
		return err
	}
	return bgzf.p.Err()
}

func (bgzf *Reader) nextBlock() error {
	select {
	case <-bgzf.ctx.Done():
		return bgzf.ctx.Err()
	case b, ok := <-bgzf.channel:
		if !ok {
			if err := bgzf.p.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		bgzf.index = 0
		bgzf.current = b
		return nil
	}
}

// Read implements the method of io.Reader.
func (bgzf *Reader) Read(p []byte) (n int, err error) {
	for bgzf.current == nil || bgzf.index == len(bgzf.current.data) {
		if bgzf.current != nil {
			blockPool.Put(bgzf.current)
			bgzf.current = nil
		}
		if err = bgzf.nextBlock(); err != nil {
			return 0, err
		}
	}
	n = copy(p, bgzf.current.data[bgzf.index:])
	bgzf.index += n
	return n, nil
}

type (
	// Writer writes to a BGZF file. It implements io.WriteCloser.
	Writer struct {
		w       io.Writer
		level   int
		p       pipeline.Pipeline
		wait    sync.WaitGroup
		current *block
		channel chan *block
		data    interface{}
	}

	// pendingSource is the pipeline.Source view of a Writer that
	// produces filled, still uncompressed blocks.
	pendingSource Writer
)

// Err implements the method of the pipeline.Source interface.
func (*pendingSource) Err() error {
	return nil
}

// Prepare implements the method of the pipeline.Source interface.
func (*pendingSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (src *pendingSource) Fetch(_ int) (fetched int) {
	if b, ok := <-src.channel; ok {
		src.data = b
		return 1
	}
	src.data = nil
	return 0
}

// Data implements the method of the pipeline.Source interface.
func (src *pendingSource) Data() interface{} {
	return src.data
}

var flateWriterPool sync.Pool

func (bgzf *Writer) deflate(_ int, data interface{}) interface{} {
	uncompressed := data.(*block)
	compressed := blockPool.Get().(*block)
	buf := bytes.NewBuffer(compressed.data[:0])
	buf.Write(blockHeader)
	var flateWriter *flate.Writer
	if pooled := flateWriterPool.Get(); pooled != nil {
		flateWriter = pooled.(*flate.Writer)
		flateWriter.Reset(buf)
	} else {
		var err error
		if flateWriter, err = flate.NewWriter(buf, bgzf.level); err != nil {
			bgzf.p.SetErr(err)
			return compressed
		}
	}
	if _, err := flateWriter.Write(uncompressed.data); err != nil {
		bgzf.p.SetErr(err)
	} else if err := flateWriter.Close(); err != nil {
		bgzf.p.SetErr(err)
	}
	flateWriterPool.Put(flateWriter)
	var tail [8]byte
	binary.LittleEndian.PutUint32(tail[0:4], crc32.ChecksumIEEE(uncompressed.data))
	binary.LittleEndian.PutUint32(tail[4:8], uint32(len(uncompressed.data)))
	buf.Write(tail[:])
	compressed.data = buf.Bytes()
	binary.LittleEndian.PutUint16(compressed.data[16:18], uint16(len(compressed.data)-1))
	uncompressed.data = uncompressed.data[:0]
	blockPool.Put(uncompressed)
	return compressed
}

// NewWriter returns a Writer for the given io.Writer. The level is
// passed on to compress/flate, so it ranges from flate.HuffmanOnly to
// flate.BestCompression, with flate.DefaultCompression as default.
func NewWriter(w io.Writer, level int) *Writer {
	bgzf := &Writer{
		w:       w,
		level:   level,
		current: blockPool.Get().(*block),
		channel: make(chan *block, 1),
	}
	bgzf.current.data = bgzf.current.data[:0]
	bgzf.p.Source((*pendingSource)(bgzf))
	bgzf.p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(bgzf.deflate)),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			compressed := data.(*block)
			if _, err := w.Write(compressed.data); err != nil {
				bgzf.p.SetErr(err)
			}
			compressed.data = compressed.data[:0]
			blockPool.Put(compressed)
			return nil
		})),
	)
	bgzf.wait.Add(1)
	go func() {
		defer bgzf.wait.Done()
		bgzf.p.Run()
	}()
	return bgzf
}

// Close flushes the pending block, waits for all blocks to be
// written, and terminates the file with the BGZF EOF marker. It does
// not close the underlying io.Writer.
func (bgzf *Writer) Close() error {
	if len(bgzf.current.data) > 0 {
		bgzf.channel <- bgzf.current
		bgzf.current = nil
	}
	close(bgzf.channel)
	bgzf.wait.Wait()
	if err := bgzf.p.Err(); err != nil {
		return err
	}
	_, err := bgzf.w.Write(eofMarker)
	return err
}

// Write implements the method of io.Writer.
func (bgzf *Writer) Write(p []byte) (n int, err error) {
	n = len(p)
	for {
		index := len(bgzf.current.data)
		if index+len(p) < maxDataSize {
			bgzf.current.data = append(bgzf.current.data, p...)
			return n, nil
		}
		k := copy(bgzf.current.data[index:maxDataSize], p)
		bgzf.current.data = bgzf.current.data[:maxDataSize]
		p = p[k:]
		if err := bgzf.p.Err(); err != nil {
			return n - len(p), err
		}
		bgzf.channel <- bgzf.current
		bgzf.current = blockPool.Get().(*block)
		bgzf.current.data = bgzf.current.data[:0]
	}
}
