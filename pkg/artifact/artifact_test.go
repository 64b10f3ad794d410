package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/pipeline"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// runResult runs the pipeline on two perfectly correlated pairs, one asset
// too short to correlate with anything and one asset with a single price.
func runResult(t *testing.T) *pipeline.Result {
	t.Helper()

	series := map[string][]float64{
		"A":    {100, 110, 99, 108.9, 98.01},
		"B":    {200, 220, 198, 217.8, 196.02},
		"C":    {100, 110, 121, 108.9, 98.01},
		"D":    {200, 220, 242, 217.8, 196.02},
		"E":    {10, 11, 0, 0, 0},
		"THIN": {0, 0, 5, 0, 0},
	}
	b := market.NewPriceMatrixBuilder()
	for ticker, prices := range series {
		for i, p := range prices {
			if p == 0 {
				continue
			}
			require.NoError(t, b.Set(epoch.AddDate(0, 0, i), ticker, p))
		}
	}
	pm, err := b.Build()
	require.NoError(t, err)

	p, err := pipeline.New(pipeline.DefaultConfig())
	require.NoError(t, err)
	res, err := p.Run(context.Background(), pm)
	require.NoError(t, err)
	return res
}

func TestWriteReturnsCSV(t *testing.T) {
	intervals := []market.Interval{
		{From: epoch, To: epoch.AddDate(0, 0, 1)},
		{From: epoch.AddDate(0, 0, 1), To: epoch.AddDate(0, 0, 2)},
	}
	rm, err := market.NewReturnsMatrix(intervals, map[string][]market.Observation{
		"A": {market.Present(0.5), market.Absent},
		"B": {market.Absent, market.Present(-0.25)},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReturnsCSV(&buf, rm))
	assert.Equal(t, "Date,A,B\n2024-01-02,0.5,\n2024-01-03,,-0.25\n", buf.String())
}

func TestWriteCorrelationCSV(t *testing.T) {
	res := runResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCorrelationCSV(&buf, res.Correlation))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, ",A,B,C,D,E", lines[0])
	assert.Equal(t, "E,,,,,1", lines[5], "undefined cells are blank, the diagonal is 1")
}

func TestWriteEdgesAndDegreeCSV(t *testing.T) {
	res := runResult(t)

	var edges bytes.Buffer
	require.NoError(t, WriteEdgesCSV(&edges, res.Graph))
	lines := strings.Split(strings.TrimSpace(edges.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "source,target,weight,correlation", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "A,B,"))
	assert.True(t, strings.HasPrefix(lines[2], "C,D,"))

	var degree bytes.Buffer
	require.NoError(t, WriteDegreeCSV(&degree, res.Graph, res.Partition, nil))
	lines = strings.Split(strings.TrimSpace(degree.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "ticker,degree,weighted_degree,community,pagerank", lines[0])
	assert.Equal(t, "E,0,0,2,", lines[5], "isolated vertex keeps its own community")
}

func TestParquet(t *testing.T) {
	res := runResult(t)

	for name, encode := range map[string]func() ([]byte, error){
		"returns": func() ([]byte, error) { return ReturnsParquet(res.Returns) },
		"edges":   func() ([]byte, error) { return EdgesParquet(res.Graph) },
	} {
		t.Run(name, func(t *testing.T) {
			data, err := encode()
			require.NoError(t, err)
			require.Greater(t, len(data), 8)
			assert.Equal(t, "PAR1", string(data[:4]))
			assert.Equal(t, "PAR1", string(data[len(data)-4:]))
		})
	}
}

func encodeSnapshot(t *testing.T, res *pipeline.Result) []byte {
	t.Helper()
	var buf bytes.Buffer
	raw, compressed, err := EncodeSnapshot(&buf, NewSnapshot(res))
	require.NoError(t, err)
	assert.Positive(t, raw)
	assert.Positive(t, compressed)
	return buf.Bytes()
}

func TestSnapshot_RoundTrip(t *testing.T) {
	res := runResult(t)
	path := filepath.Join(t.TempDir(), SnapshotFile)
	require.NoError(t, os.WriteFile(path, encodeSnapshot(t, res), 0644))

	snap, err := OpenSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, res.RunID, snap.RunID)
	assert.True(t, res.StartedAt.Equal(snap.StartedAt))
	assert.Equal(t, res.Config, snap.Config)
	assert.Equal(t, res.Partition.NodeCommunity, snap.Partition.NodeCommunity)
	assert.InDelta(t, res.Partition.Modularity, snap.Partition.Modularity, 1e-12)

	require.Len(t, snap.Exclusions, 1)
	assert.Equal(t, "THIN", snap.Exclusions[0].Ticker)
	assert.Equal(t, 1, snap.Exclusions[0].ValidPrices)

	require.NotNil(t, snap.Graph)
	assert.Equal(t, res.Graph.Edges(), snap.Graph.Edges())
	assert.Equal(t, []string{"E"}, snap.Graph.Isolated())

	require.NotNil(t, snap.Correlation)
	rho, err := snap.Correlation.Get("A", "B")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rho, 1e-9)
	_, err = snap.Correlation.Get("A", "E")
	assert.Error(t, err)
}

func TestSnapshot_Corruption(t *testing.T) {
	data := encodeSnapshot(t, runResult(t))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{
			name:   "bad magic",
			mutate: func(b []byte) []byte { b[0] = 'X'; return b },
			want:   ErrBadMagic,
		},
		{
			name:   "version",
			mutate: func(b []byte) []byte { b[4] = 99; return b },
			want:   ErrUnsupported,
		},
		{
			name:   "flipped payload byte",
			mutate: func(b []byte) []byte { b[12] ^= 0xff; return b },
			want:   ErrChecksumMismatch,
		},
		{
			name:   "truncated",
			mutate: func(b []byte) []byte { return b[:len(b)-2] },
			want:   ErrTruncated,
		},
		{
			name:   "header only",
			mutate: func(b []byte) []byte { return b[:3] },
			want:   ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(append([]byte(nil), data...))
			_, err := DecodeSnapshot(bytes.NewReader(b), int64(len(b)))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "run/a.csv", []byte("x")))
	require.NoError(t, store.Put(ctx, "run/a.csv", []byte("y")))

	got, err := os.ReadFile(filepath.Join(dir, "run", "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "y", string(got))
	assert.Equal(t, filepath.Join(dir, "run", "a.csv"), store.Location("run/a.csv"))

	assert.Error(t, store.Put(ctx, "../escape.csv", []byte("x")))
	assert.Error(t, store.Put(ctx, "", []byte("x")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Put(cancelled, "run/b.csv", nil), context.Canceled)
}

type fakeS3 struct {
	keys   []string
	types  []string
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	f.types = append(f.types, aws.ToString(in.ContentType))
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{}
	store := NewS3StoreWithClient(client, "bucket", "/corrnet/")

	require.NoError(t, store.Put(context.Background(), "run/edges.csv", []byte("a,b")))
	assert.Equal(t, []string{"bucket/corrnet/run/edges.csv"}, client.keys)
	assert.Equal(t, []string{"text/csv"}, client.types)
	assert.Equal(t, "a,b", string(client.bodies[0]))
	assert.Equal(t, "s3://bucket/corrnet/run/edges.csv", store.Location("run/edges.csv"))

	client.err = errors.New("access denied")
	err := store.Put(context.Background(), "run/x.json", nil)
	assert.ErrorContains(t, err, "access denied")
}

func TestWriter(t *testing.T) {
	res := runResult(t)
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	w, err := NewWriter(store, []string{FormatCSV, FormatJSON, FormatParquet, FormatSnapshot}, nil)
	require.NoError(t, err)

	written, err := w.Write(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, written, 9)

	for _, out := range written {
		info, err := os.Stat(out.Location)
		require.NoError(t, err, out.Key)
		assert.Equal(t, int64(out.Bytes), info.Size())
	}

	raw, err := os.ReadFile(filepath.Join(dir, res.RunID, CommunitiesJSON))
	require.NoError(t, err)
	var labels map[string]int
	require.NoError(t, json.Unmarshal(raw, &labels))
	assert.Equal(t, res.Partition.NodeCommunity, labels)

	snap, err := OpenSnapshot(filepath.Join(dir, res.RunID, SnapshotFile))
	require.NoError(t, err)
	assert.Equal(t, res.RunID, snap.RunID)
}

func TestWriter_SelectedFormats(t *testing.T) {
	client := &fakeS3{}
	w, err := NewWriter(NewS3StoreWithClient(client, "b", ""), []string{FormatJSON}, nil)
	require.NoError(t, err)

	res := runResult(t)
	written, err := w.Write(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, written, 2)
	assert.Equal(t, []string{"b/" + res.RunID + "/communities.json", "b/" + res.RunID + "/network.json"}, client.keys)

	_, err = NewWriter(NewS3StoreWithClient(client, "b", ""), []string{"xml"}, nil)
	assert.Error(t, err)
}
