// 文件: pkg/feed/decoder.go
// 文本行情解码器
//
// 行格式 (空白分隔):
//   <timestamp> A <order-id> <B|S> <price> <size>
//   <timestamp> R <order-id> <size>
//
// 价格是十进制文本，按会话中第一个价格的小数位数 d 转成定点整数，
// 之后 d 固定不变。

package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"max.com/pricer/pkg/book"
)

// MaxPrecision 最大小数位数
// 10^18 以内的缩放保证 int64 定点价格还有整数部分的空间
const MaxPrecision = 18

// ErrMalformed 输入格式错误，与协议错误同样致命
var ErrMalformed = errors.New("malformed record")

// DecodeError 解码错误，带行号
type DecodeError struct {
	Line int64
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// HashOrderID 把外部字符串 ID 哈希成 OrderID
func HashOrderID(id string) book.OrderID {
	return book.OrderID(xxhash.Sum64String(id))
}

// =============================================================================
// Decoder
// =============================================================================

// Decoder 文本解码器
type Decoder struct {
	scanner   *bufio.Scanner
	line      int64
	precision int // -1 表示尚未确定
}

// NewDecoder 从 io.Reader 解码
func NewDecoder(r io.Reader) *Decoder {
	d := NewLineDecoder()
	d.scanner = bufio.NewScanner(r)
	d.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return d
}

// NewLineDecoder 逐行解码（Kafka / NATS 每条消息一行）
func NewLineDecoder() *Decoder {
	return &Decoder{precision: -1}
}

// Next 读取下一条命令，结束返回 io.EOF
func (d *Decoder) Next() (book.Command, error) {
	if d.scanner == nil {
		return book.Command{}, io.EOF
	}
	for d.scanner.Scan() {
		cmd, ok, err := d.DecodeLine(d.scanner.Text())
		if err != nil {
			return book.Command{}, err
		}
		if ok {
			return cmd, nil
		}
	}
	if err := d.scanner.Err(); err != nil {
		return book.Command{}, fmt.Errorf("read feed: %w", err)
	}
	return book.Command{}, io.EOF
}

// Precision 价格小数位数，尚未见到价格时 ok=false
func (d *Decoder) Precision() (int, bool) {
	return d.precision, d.precision >= 0
}

// SetPrecision 预先指定小数位数（例如从磁带头读取）
func (d *Decoder) SetPrecision(p int) error {
	if p < 0 || p > MaxPrecision {
		return fmt.Errorf("precision %d out of range: %w", p, ErrMalformed)
	}
	d.precision = p
	return nil
}

// DecodeLine 解码一行；空行返回 ok=false
func (d *Decoder) DecodeLine(text string) (book.Command, bool, error) {
	d.line++

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return book.Command{}, false, nil
	}

	cmd, err := d.decodeFields(fields)
	if err != nil {
		return book.Command{}, false, &DecodeError{Line: d.line, Text: text, Err: err}
	}
	return cmd, true, nil
}

func (d *Decoder) decodeFields(fields []string) (book.Command, error) {
	if len(fields) < 2 {
		return book.Command{}, fmt.Errorf("%d fields: %w", len(fields), ErrMalformed)
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return book.Command{}, fmt.Errorf("timestamp: %w", ErrMalformed)
	}

	switch fields[1] {
	case "A":
		if len(fields) != 6 {
			return book.Command{}, fmt.Errorf("add expects 6 fields, got %d: %w", len(fields), ErrMalformed)
		}
		side, err := parseSide(fields[3])
		if err != nil {
			return book.Command{}, err
		}
		price, err := d.parsePrice(fields[4])
		if err != nil {
			return book.Command{}, err
		}
		qty, err := parseQty(fields[5])
		if err != nil {
			return book.Command{}, err
		}
		return book.NewAdd(ts, HashOrderID(fields[2]), side, price, qty), nil

	case "R":
		if len(fields) != 4 {
			return book.Command{}, fmt.Errorf("reduce expects 4 fields, got %d: %w", len(fields), ErrMalformed)
		}
		qty, err := parseQty(fields[3])
		if err != nil {
			return book.Command{}, err
		}
		return book.NewReduce(ts, HashOrderID(fields[2]), qty), nil
	}

	return book.Command{}, fmt.Errorf("message type %q: %w", fields[1], ErrMalformed)
}

// parsePrice 十进制文本 → 定点整数
// 第一次调用确定精度；之后小数位更多的价格无法精确表示，视为格式错误
func (d *Decoder) parsePrice(text string) (book.Price, error) {
	v, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", text, ErrMalformed)
	}
	if v.IsNegative() {
		return 0, fmt.Errorf("price %q negative: %w", text, ErrMalformed)
	}

	if d.precision < 0 {
		p := 0
		if exp := v.Exponent(); exp < 0 {
			p = int(-exp)
		}
		if err := d.SetPrecision(p); err != nil {
			return 0, err
		}
	}

	scaled := v.Shift(int32(d.precision))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("price %q has more than %d decimals: %w", text, d.precision, ErrMalformed)
	}
	bi := scaled.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("price %q overflows: %w", text, ErrMalformed)
	}
	return book.Price(bi.Int64()), nil
}

func parseSide(text string) (book.Side, error) {
	switch text {
	case "B":
		return book.SideBuy, nil
	case "S":
		return book.SideSell, nil
	}
	return 0, fmt.Errorf("side %q: %w", text, ErrMalformed)
}

func parseQty(text string) (book.Qty, error) {
	q, err := strconv.ParseInt(text, 10, 64)
	if err != nil || q <= 0 {
		return 0, fmt.Errorf("size %q: %w", text, ErrMalformed)
	}
	return q, nil
}
