package feed

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"max.com/pricer/pkg/book"
)

const sampleFeed = `28800538 A b S 44.26 100
28800562 A c B 44.10 100
28800744 R b 100
28800758 A d B 44.18 157
28800773 A e S 44.38 100
`

func drain(t *testing.T, src Source) []book.Command {
	t.Helper()
	var cmds []book.Command
	for {
		cmd, err := src.Next(context.Background())
		if err == io.EOF {
			return cmds
		}
		require.NoError(t, err)
		cmds = append(cmds, cmd)
	}
}

func TestTape_RoundTrip(t *testing.T) {
	want := drain(t, NewReaderSource(strings.NewReader(sampleFeed)))

	var buf bytes.Buffer
	n, err := Record(context.Background(), NewReaderSource(strings.NewReader(sampleFeed)), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), n)

	tr, err := NewTapeReader(&buf)
	require.NoError(t, err)
	p, ok := tr.Precision()
	assert.True(t, ok)
	assert.Equal(t, 2, p)

	assert.Equal(t, want, drain(t, tr))
}

func TestTape_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.tape")

	tw, err := CreateTape(path, 4)
	require.NoError(t, err)
	_, err = tw.Write(book.NewAdd(1, 7, book.SideBuy, 123456, 10))
	require.NoError(t, err)
	seq, err := tw.Write(book.NewReduce(2, 7, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
	require.NoError(t, tw.Close())

	tr, err := OpenTape(path)
	require.NoError(t, err)
	defer tr.Close()

	p, _ := tr.Precision()
	assert.Equal(t, 4, p)
	cmds := drain(t, tr)
	require.Len(t, cmds, 2)
	assert.Equal(t, book.SideBuy, cmds[0].Side)
	assert.Equal(t, book.Price(123456), cmds[0].Price)
}

func TestTape_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	tw, err := NewTapeWriter(&buf, 2)
	require.NoError(t, err)
	_, err = tw.Write(book.NewAdd(1, 7, book.SideSell, 100, 10))
	require.NoError(t, err)
	require.NoError(t, tw.Flush())

	raw := buf.Bytes()
	raw[tapeHeaderLen+entryFixedLen+10] ^= 0xFF // 价格字节

	tr, err := NewTapeReader(bytes.NewReader(raw))
	require.NoError(t, err)
	_, err = tr.Next(context.Background())
	assert.ErrorIs(t, err, ErrTapeCorrupt)
}

func TestTape_Truncated(t *testing.T) {
	var buf bytes.Buffer
	tw, err := NewTapeWriter(&buf, 2)
	require.NoError(t, err)
	_, err = tw.Write(book.NewReduce(1, 7, 10))
	require.NoError(t, err)
	require.NoError(t, tw.Flush())

	raw := buf.Bytes()[:buf.Len()-2]
	tr, err := NewTapeReader(bytes.NewReader(raw))
	require.NoError(t, err)
	_, err = tr.Next(context.Background())
	assert.ErrorIs(t, err, ErrTapeCorrupt)
}

func TestTape_BadHeader(t *testing.T) {
	_, err := NewTapeReader(strings.NewReader("not a tape"))
	assert.ErrorIs(t, err, ErrTapeCorrupt)

	_, err = NewTapeReader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrTapeCorrupt)
}

func TestRecord_PrecisionFromLaterAdd(t *testing.T) {
	// 第一条命令没有价格，头部精度要等到第一条 Add
	feed := "1 R z 5\n2 A a S 1.250 3\n"

	var buf bytes.Buffer
	n, err := Record(context.Background(), NewReaderSource(strings.NewReader(feed)), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	tr, err := NewTapeReader(&buf)
	require.NoError(t, err)
	p, _ := tr.Precision()
	assert.Equal(t, 3, p)

	cmds := drain(t, tr)
	require.Len(t, cmds, 2)
	assert.Equal(t, book.Price(1250), cmds[1].Price)
}

func TestRecord_EmptyFeed(t *testing.T) {
	var buf bytes.Buffer
	n, err := Record(context.Background(), NewReaderSource(strings.NewReader("")), &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, tapeHeaderLen, buf.Len())
}
