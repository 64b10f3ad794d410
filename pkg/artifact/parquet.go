package artifact

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

type returnRecord struct {
	Date   int64   `parquet:"name=date, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	From   int64   `parquet:"name=from, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Ticker string  `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	Return float64 `parquet:"name=return, type=DOUBLE"`
}

type edgeRecord struct {
	Source      string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	Target      string  `parquet:"name=target, type=BYTE_ARRAY, convertedtype=UTF8"`
	Weight      float64 `parquet:"name=weight, type=DOUBLE"`
	Correlation float64 `parquet:"name=correlation, type=DOUBLE"`
}

// memFile is a write-only in-memory parquet target
type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// ReturnsParquet encodes the returns in long form, one record per defined
// (interval, ticker) cell. Absent returns produce no record.
func ReturnsParquet(rm *market.ReturnsMatrix) ([]byte, error) {
	tickers := rm.Tickers()
	records := make([]any, 0, rm.Rows()*len(tickers))
	for row := 0; row < rm.Rows(); row++ {
		iv := rm.Interval(row)
		for col, ticker := range tickers {
			v, ok := rm.At(row, col)
			if !ok {
				continue
			}
			records = append(records, returnRecord{
				Date:   iv.To.UnixMilli(),
				From:   iv.From.UnixMilli(),
				Ticker: ticker,
				Return: v,
			})
		}
	}
	return encodeParquet(new(returnRecord), records)
}

// EdgesParquet encodes the edge list
func EdgesParquet(g *network.Graph) ([]byte, error) {
	edges := g.Edges()
	records := make([]any, len(edges))
	for i, e := range edges {
		records[i] = edgeRecord{
			Source:      e.Source,
			Target:      e.Target,
			Weight:      e.Weight,
			Correlation: e.Correlation,
		}
	}
	return encodeParquet(new(edgeRecord), records)
}

func encodeParquet(schema any, records []any) ([]byte, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, schema, 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.Bytes(), nil
}
