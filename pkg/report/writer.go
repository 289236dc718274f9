package report

import (
	"bufio"
	"context"
	"io"
)

// WriterReporter 文本行写到 io.Writer（默认 stdout）
type WriterReporter struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewWriterReporter 创建；w 实现 io.Closer 时 Close 会关闭它
func NewWriterReporter(w io.Writer) *WriterReporter {
	r := &WriterReporter{w: bufio.NewWriterSize(w, 64*1024)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// NewStdoutReporter 写到 stdout，Close 只刷新不关闭
func NewStdoutReporter(w io.Writer) *WriterReporter {
	return &WriterReporter{w: bufio.NewWriterSize(w, 64*1024)}
}

// Report 实现 Reporter
func (r *WriterReporter) Report(_ context.Context, rec Record) error {
	if _, err := r.w.WriteString(rec.Line()); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Flush 刷新缓冲
func (r *WriterReporter) Flush() error {
	return r.w.Flush()
}

// Close 刷新并关闭
func (r *WriterReporter) Close() error {
	if err := r.w.Flush(); err != nil {
		return err
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
