package feed

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"

	"max.com/pricer/pkg/book"
)

// =============================================================================
// 二进制磁带 (Tape)
// =============================================================================
//
// 已解码的命令流的紧凑二进制形式，重放时跳过文本解析。
//
// 文件布局 (LittleEndian):
//
//   Header: Magic(4) + Version(1) + Precision(1)
//   Entry:  Sequence(8) + Timestamp(8) + Type(1) + DataLen(4) + Data(n) + CRC32(4)
//
//   Add    Data: ID(8) + Side(1) + Price(8) + Qty(8)
//   Reduce Data: ID(8) + Qty(8)
//
// CRC32 覆盖 Sequence + Timestamp + Type + Data。

const (
	tapeMagic   uint32 = 0x50545031 // "PTP1"
	tapeVersion uint8  = 1

	tapeHeaderLen = 6
	addDataLen    = 8 + 1 + 8 + 8
	reduceDataLen = 8 + 8
	entryFixedLen = 8 + 8 + 1 + 4
)

// ErrTapeCorrupt 磁带损坏（校验和、序列号或长度不符）
var ErrTapeCorrupt = errors.New("tape corrupt")

// =============================================================================
// TapeWriter
// =============================================================================

// TapeWriter 磁带写入器
// 单线程使用
type TapeWriter struct {
	writer   *bufio.Writer
	closer   io.Closer
	sequence int64

	// 可复用 buffer
	buf []byte
	crc hash.Hash32
}

// NewTapeWriter 创建写入器并立即写入头部
func NewTapeWriter(w io.Writer, precision int) (*TapeWriter, error) {
	if precision < 0 || precision > MaxPrecision {
		return nil, fmt.Errorf("tape precision %d out of range", precision)
	}

	tw := &TapeWriter{
		writer: bufio.NewWriter(w),
		buf:    make([]byte, 64),
		crc:    crc32.NewIEEE(),
	}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}

	header := tw.buf[:tapeHeaderLen]
	binary.LittleEndian.PutUint32(header[0:], tapeMagic)
	header[4] = tapeVersion
	header[5] = byte(precision)
	if _, err := tw.writer.Write(header); err != nil {
		return nil, fmt.Errorf("write tape header: %w", err)
	}
	return tw, nil
}

// CreateTape 创建磁带文件
func CreateTape(path string, precision int) (*TapeWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	tw, err := NewTapeWriter(file, precision)
	if err != nil {
		file.Close()
		return nil, err
	}
	return tw, nil
}

// Write 写入一条命令，返回序列号
func (w *TapeWriter) Write(cmd book.Command) (int64, error) {
	var data []byte
	switch cmd.Kind {
	case book.CommandAdd:
		data = w.buf[entryFixedLen : entryFixedLen+addDataLen]
		binary.LittleEndian.PutUint64(data[0:], uint64(cmd.ID))
		data[8] = byte(cmd.Side)
		binary.LittleEndian.PutUint64(data[9:], uint64(cmd.Price))
		binary.LittleEndian.PutUint64(data[17:], uint64(cmd.Qty))
	case book.CommandReduce:
		data = w.buf[entryFixedLen : entryFixedLen+reduceDataLen]
		binary.LittleEndian.PutUint64(data[0:], uint64(cmd.ID))
		binary.LittleEndian.PutUint64(data[8:], uint64(cmd.Qty))
	default:
		return 0, fmt.Errorf("tape: command kind %d: %w", cmd.Kind, book.ErrMalformedCommand)
	}

	w.sequence++
	head := w.buf[:entryFixedLen]
	binary.LittleEndian.PutUint64(head[0:], uint64(w.sequence))
	binary.LittleEndian.PutUint64(head[8:], uint64(cmd.Timestamp))
	head[16] = byte(cmd.Kind)
	binary.LittleEndian.PutUint32(head[17:], uint32(len(data)))

	sum := checksum(w.crc, head[:17], data)

	if _, err := w.writer.Write(head); err != nil {
		return 0, err
	}
	if _, err := w.writer.Write(data); err != nil {
		return 0, err
	}
	if err := binary.Write(w.writer, binary.LittleEndian, sum); err != nil {
		return 0, err
	}
	return w.sequence, nil
}

// Count 已写入条数
func (w *TapeWriter) Count() int64 {
	return w.sequence
}

// Flush 刷新缓冲
func (w *TapeWriter) Flush() error {
	return w.writer.Flush()
}

// Close 刷新并关闭底层 writer
func (w *TapeWriter) Close() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// =============================================================================
// TapeReader - 实现 Source
// =============================================================================

// TapeReader 磁带读取器
type TapeReader struct {
	reader    *bufio.Reader
	closer    io.Closer
	precision int
	sequence  int64

	buf []byte
	crc hash.Hash32
}

// NewTapeReader 读取并校验头部
func NewTapeReader(r io.Reader) (*TapeReader, error) {
	tr := &TapeReader{
		reader: bufio.NewReader(r),
		buf:    make([]byte, 64),
		crc:    crc32.NewIEEE(),
	}
	if c, ok := r.(io.Closer); ok {
		tr.closer = c
	}

	header := tr.buf[:tapeHeaderLen]
	if _, err := io.ReadFull(tr.reader, header); err != nil {
		return nil, fmt.Errorf("read tape header: %w", ErrTapeCorrupt)
	}
	if magic := binary.LittleEndian.Uint32(header[0:]); magic != tapeMagic {
		return nil, fmt.Errorf("bad magic %#x: %w", magic, ErrTapeCorrupt)
	}
	if header[4] != tapeVersion {
		return nil, fmt.Errorf("unsupported tape version %d", header[4])
	}
	tr.precision = int(header[5])
	if tr.precision > MaxPrecision {
		return nil, fmt.Errorf("precision %d: %w", tr.precision, ErrTapeCorrupt)
	}
	return tr, nil
}

// OpenTape 打开磁带文件
func OpenTape(path string) (*TapeReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	tr, err := NewTapeReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return tr, nil
}

// Next 实现 Source；干净结束返回 io.EOF，半条记录视为损坏
func (r *TapeReader) Next(ctx context.Context) (book.Command, error) {
	if err := ctx.Err(); err != nil {
		return book.Command{}, err
	}

	head := r.buf[:entryFixedLen]
	if _, err := io.ReadFull(r.reader, head); err != nil {
		if errors.Is(err, io.EOF) {
			return book.Command{}, io.EOF
		}
		return book.Command{}, r.corrupt("truncated entry header")
	}

	seq := int64(binary.LittleEndian.Uint64(head[0:]))
	ts := int64(binary.LittleEndian.Uint64(head[8:]))
	kind := book.CommandKind(head[16])
	dataLen := binary.LittleEndian.Uint32(head[17:])

	if seq != r.sequence+1 {
		return book.Command{}, r.corrupt(fmt.Sprintf("sequence %d after %d", seq, r.sequence))
	}

	var want uint32
	switch kind {
	case book.CommandAdd:
		want = addDataLen
	case book.CommandReduce:
		want = reduceDataLen
	default:
		return book.Command{}, r.corrupt(fmt.Sprintf("entry type %d", kind))
	}
	if dataLen != want {
		return book.Command{}, r.corrupt(fmt.Sprintf("data length %d for %s", dataLen, kind))
	}

	data := r.buf[entryFixedLen : entryFixedLen+int(dataLen)]
	if _, err := io.ReadFull(r.reader, data); err != nil {
		return book.Command{}, r.corrupt("truncated entry data")
	}
	var sum uint32
	if err := binary.Read(r.reader, binary.LittleEndian, &sum); err != nil {
		return book.Command{}, r.corrupt("truncated checksum")
	}
	if sum != checksum(r.crc, head[:17], data) {
		return book.Command{}, r.corrupt("checksum mismatch")
	}
	r.sequence = seq

	id := book.OrderID(binary.LittleEndian.Uint64(data[0:]))
	if kind == book.CommandReduce {
		return book.NewReduce(ts, id, int64(binary.LittleEndian.Uint64(data[8:]))), nil
	}
	return book.NewAdd(ts, id,
		book.Side(int8(data[8])),
		book.Price(binary.LittleEndian.Uint64(data[9:])),
		int64(binary.LittleEndian.Uint64(data[17:])),
	), nil
}

// Precision 实现 Source，来自头部
func (r *TapeReader) Precision() (int, bool) {
	return r.precision, true
}

// Close 关闭底层 reader
func (r *TapeReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *TapeReader) corrupt(reason string) error {
	return fmt.Errorf("entry %d: %s: %w", r.sequence+1, reason, ErrTapeCorrupt)
}

// =============================================================================
// 辅助函数
// =============================================================================

func checksum(h hash.Hash32, head, data []byte) uint32 {
	h.Reset()
	h.Write(head)
	h.Write(data)
	return h.Sum32()
}

// Record 把任意 Source 录制成磁带，返回写入条数
// 头部需要精度：第一个价格出现之前的命令先缓存；整个流没有价格时按精度 0 写入
func Record(ctx context.Context, src Source, w io.Writer) (int64, error) {
	var (
		tw      *TapeWriter
		pending []book.Command
	)

	flush := func(precision int) error {
		var err error
		if tw, err = NewTapeWriter(w, precision); err != nil {
			return err
		}
		for _, cmd := range pending {
			if _, err := tw.Write(cmd); err != nil {
				return err
			}
		}
		pending = nil
		return nil
	}

	for {
		cmd, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return countOf(tw), err
		}

		if tw != nil {
			if _, err := tw.Write(cmd); err != nil {
				return tw.Count(), err
			}
			continue
		}

		pending = append(pending, cmd)
		if precision, ok := src.Precision(); ok {
			if err := flush(precision); err != nil {
				return countOf(tw), err
			}
		}
	}

	if tw == nil {
		if err := flush(0); err != nil {
			return countOf(tw), err
		}
	}
	return tw.Count(), tw.Flush()
}

func countOf(tw *TapeWriter) int64 {
	if tw == nil {
		return 0
	}
	return tw.Count()
}
