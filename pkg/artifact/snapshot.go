package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/golang/snappy"
	"golang.org/x/exp/mmap"

	"github.com/dd0wney/cluso-corrnet/pkg/algorithms"
	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/pipeline"
)

// Snapshot file layout:
//
//	[Magic:4][Version:1] then frames until EOF
//	frame: [Kind:1][DataLen:4][Data:N][Checksum:4]
//
// Data is snappy compressed and the CRC32 covers the compressed bytes.
const (
	snapshotVersion byte = 1
	frameHeaderSize      = 5
)

var snapshotMagic = [4]byte{'C', 'N', 'S', 'N'}

type frameKind byte

const (
	frameMeta        frameKind = 1
	frameCorrelation frameKind = 2
	frameGraph       frameKind = 3
)

// Snapshot errors
var (
	ErrBadMagic         = errors.New("not a snapshot file")
	ErrUnsupported      = errors.New("unsupported snapshot version")
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
	ErrTruncated        = errors.New("snapshot truncated")
)

// Exclusion is an asset left out of a run
type Exclusion struct {
	Ticker       string `json:"ticker"`
	ValidPrices  int    `json:"valid_prices"`
	ValidReturns int    `json:"valid_returns"`
	Reason       string `json:"reason"`
}

// Snapshot is a self-contained record of one run, enough to browse its
// network and partition without recomputing anything.
type Snapshot struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Config    pipeline.Config `json:"config"`

	Partition             *algorithms.CommunityDetectionResult `json:"partition"`
	PageRank              map[string]float64                   `json:"pagerank,omitempty"`
	AverageClustering     float64                              `json:"average_clustering"`
	Exclusions            []Exclusion                          `json:"exclusions,omitempty"`
	UndefinedPairs        []correlation.UndefinedPair          `json:"undefined_pairs,omitempty"`
	NegativeEdgesExcluded int                                  `json:"negative_edges_excluded"`

	Correlation *correlation.Matrix `json:"-"`
	Graph       *network.Graph      `json:"-"`
}

// NewSnapshot captures a pipeline result
func NewSnapshot(res *pipeline.Result) *Snapshot {
	s := &Snapshot{
		RunID:                 res.RunID,
		StartedAt:             res.StartedAt,
		Duration:              res.Duration,
		Config:                res.Config,
		Partition:             res.Partition,
		AverageClustering:     res.AverageClustering,
		UndefinedPairs:        res.UndefinedPairs,
		NegativeEdgesExcluded: res.NegativeEdgesExcluded,
		Correlation:           res.Correlation,
		Graph:                 res.Graph,
	}
	if res.PageRank != nil {
		s.PageRank = res.PageRank.Scores
	}
	for _, e := range res.Exclusions {
		s.Exclusions = append(s.Exclusions, Exclusion{
			Ticker:       e.Ticker,
			ValidPrices:  e.ValidPrices,
			ValidReturns: e.ValidReturns,
			Reason:       e.Error(),
		})
	}
	return s
}

// EncodeSnapshot writes s to w. It returns the uncompressed and compressed
// payload sizes.
func EncodeSnapshot(w io.Writer, s *Snapshot) (raw, compressed int, err error) {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(snapshotMagic[:]); err != nil {
		return 0, 0, err
	}
	if err := bw.WriteByte(snapshotVersion); err != nil {
		return 0, 0, err
	}

	frames := []struct {
		kind frameKind
		v    any
	}{
		{frameMeta, s},
		{frameCorrelation, s.Correlation},
		{frameGraph, s.Graph},
	}
	for _, f := range frames {
		if isNil(f.v) {
			continue
		}
		data, err := json.Marshal(f.v)
		if err != nil {
			return raw, compressed, fmt.Errorf("encode snapshot frame %d: %w", f.kind, err)
		}
		n, err := writeFrame(bw, f.kind, data)
		if err != nil {
			return raw, compressed, err
		}
		raw += len(data)
		compressed += n
	}

	return raw, compressed, bw.Flush()
}

func isNil(v any) bool {
	switch x := v.(type) {
	case *correlation.Matrix:
		return x == nil
	case *network.Graph:
		return x == nil
	case *Snapshot:
		return x == nil
	}
	return v == nil
}

func writeFrame(w *bufio.Writer, kind frameKind, data []byte) (int, error) {
	compressed := snappy.Encode(nil, data)

	if err := w.WriteByte(byte(kind)); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(compressed))); err != nil {
		return 0, err
	}
	if _, err := w.Write(compressed); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.BigEndian, crc32.ChecksumIEEE(compressed)); err != nil {
		return 0, err
	}
	return len(compressed), nil
}

// DecodeSnapshot reads a snapshot of size bytes from r
func DecodeSnapshot(r io.ReaderAt, size int64) (*Snapshot, error) {
	header := make([]byte, len(snapshotMagic)+1)
	if size < int64(len(header)) {
		return nil, ErrTruncated
	}
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, err
	}
	if !bytes.Equal(header[:4], snapshotMagic[:]) {
		return nil, ErrBadMagic
	}
	if header[4] != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, header[4])
	}

	var (
		snap  *Snapshot
		cm    *correlation.Matrix
		graph *network.Graph
	)
	pos := int64(len(header))
	for pos < size {
		kind, data, next, err := readFrame(r, pos, size)
		if err != nil {
			return nil, err
		}
		pos = next

		switch kind {
		case frameMeta:
			snap = &Snapshot{}
			err = json.Unmarshal(data, snap)
		case frameCorrelation:
			cm = &correlation.Matrix{}
			err = json.Unmarshal(data, cm)
		case frameGraph:
			graph = &network.Graph{}
			err = json.Unmarshal(data, graph)
		default:
			// unknown frames from newer writers are skipped
		}
		if err != nil {
			return nil, fmt.Errorf("decode snapshot frame %d: %w", kind, err)
		}
	}

	if snap == nil {
		return nil, fmt.Errorf("%w: no metadata frame", ErrTruncated)
	}
	snap.Correlation = cm
	snap.Graph = graph
	return snap, nil
}

func readFrame(r io.ReaderAt, pos, size int64) (frameKind, []byte, int64, error) {
	if pos+frameHeaderSize > size {
		return 0, nil, 0, fmt.Errorf("%w: frame header at offset %d", ErrTruncated, pos)
	}
	hdr := make([]byte, frameHeaderSize)
	if _, err := r.ReadAt(hdr, pos); err != nil {
		return 0, nil, 0, err
	}
	kind := frameKind(hdr[0])
	dataLen := int64(binary.BigEndian.Uint32(hdr[1:]))

	end := pos + frameHeaderSize + dataLen + 4
	if end > size {
		return 0, nil, 0, fmt.Errorf("%w: frame at offset %d needs %d bytes", ErrTruncated, pos, end-pos)
	}

	buf := make([]byte, dataLen+4)
	if _, err := r.ReadAt(buf, pos+frameHeaderSize); err != nil {
		return 0, nil, 0, err
	}
	compressed := buf[:dataLen]
	if crc32.ChecksumIEEE(compressed) != binary.BigEndian.Uint32(buf[dataLen:]) {
		return 0, nil, 0, fmt.Errorf("%w: frame at offset %d", ErrChecksumMismatch, pos)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("failed to decompress snapshot frame: %w", err)
	}
	return kind, data, end, nil
}

// OpenSnapshot memory-maps a snapshot file and decodes it
func OpenSnapshot(path string) (*Snapshot, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	snap, err := DecodeSnapshot(reader, int64(reader.Len()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}
