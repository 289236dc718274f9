package feed

import (
	"context"
	"io"

	"max.com/pricer/pkg/book"
)

// =============================================================================
// Source 接口 - 所有行情来源需实现
// =============================================================================

// Source 有序命令流
// Next 在流结束时返回 io.EOF；流式来源在 ctx 取消时返回 ctx.Err()
type Source interface {
	Next(ctx context.Context) (book.Command, error)

	// Precision 价格小数位数，尚未确定时 ok=false
	Precision() (int, bool)
}

// =============================================================================
// ReaderSource - stdin / 文件
// =============================================================================

// ReaderSource 从 io.Reader 读取文本行
type ReaderSource struct {
	dec    *Decoder
	closer io.Closer
}

// NewReaderSource 创建来源；r 实现 io.Closer 时 Close 会关闭它
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{dec: NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next 实现 Source
func (s *ReaderSource) Next(ctx context.Context) (book.Command, error) {
	if err := ctx.Err(); err != nil {
		return book.Command{}, err
	}
	return s.dec.Next()
}

// Precision 实现 Source
func (s *ReaderSource) Precision() (int, bool) {
	return s.dec.Precision()
}

// Close 关闭底层 reader
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// =============================================================================
// LineSource - 消息队列每条消息一行
// =============================================================================

// LineSource 从 channel 读取文本行，channel 关闭视为流结束
type LineSource struct {
	dec   *Decoder
	lines <-chan string
}

// NewLineSource 创建来源
func NewLineSource(lines <-chan string) *LineSource {
	return &LineSource{
		dec:   NewLineDecoder(),
		lines: lines,
	}
}

// Next 实现 Source
func (s *LineSource) Next(ctx context.Context) (book.Command, error) {
	for {
		select {
		case <-ctx.Done():
			return book.Command{}, ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				return book.Command{}, io.EOF
			}
			cmd, ok, err := s.dec.DecodeLine(line)
			if err != nil {
				return book.Command{}, err
			}
			if ok {
				return cmd, nil
			}
		}
	}
}

// Precision 实现 Source
func (s *LineSource) Precision() (int, bool) {
	return s.dec.Precision()
}
