// Package artifact exports the products of a pipeline run: CSV tables, JSON
// documents, parquet files and a compressed snapshot, written to a local
// directory or an S3 bucket.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/pipeline"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatParquet  = "parquet"
	FormatSnapshot = "snapshot"
)

// Artifact file names inside a run directory
const (
	ReturnsCSV         = "returns.csv"
	CorrelationCSV     = "correlation.csv"
	EdgesCSV           = "edges.csv"
	DegreeCSV          = "degree.csv"
	CommunitiesJSON    = "communities.json"
	NetworkJSON        = "network.json"
	ReturnsParquetFile = "returns.parquet"
	EdgesParquetFile   = "edges.parquet"
	SnapshotFile       = "run.snapshot"
)

// Written records one stored artifact
type Written struct {
	Key      string
	Location string
	Bytes    int
}

// Writer renders a pipeline result in the enabled formats and stores each
// file under <run id>/ in the store.
type Writer struct {
	store   Store
	formats map[string]bool
	logger  logging.Logger
}

// NewWriter creates a writer. A nil logger discards output.
func NewWriter(store Store, formats []string, logger logging.Logger) (*Writer, error) {
	enabled := make(map[string]bool, len(formats))
	for _, f := range formats {
		switch f {
		case FormatCSV, FormatJSON, FormatParquet, FormatSnapshot:
			enabled[f] = true
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Writer{
		store:   store,
		formats: enabled,
		logger:  logger.With(logging.Component("artifact")),
	}, nil
}

type renderFunc func(res *pipeline.Result) ([]byte, error)

// Write stores every artifact of res and returns what was written, in order
func (w *Writer) Write(ctx context.Context, res *pipeline.Result) ([]Written, error) {
	type item struct {
		format string
		name   string
		render renderFunc
	}
	items := []item{
		{FormatCSV, ReturnsCSV, renderReturnsCSV},
		{FormatCSV, CorrelationCSV, renderCorrelationCSV},
		{FormatCSV, EdgesCSV, renderEdgesCSV},
		{FormatCSV, DegreeCSV, renderDegreeCSV},
		{FormatJSON, CommunitiesJSON, renderCommunitiesJSON},
		{FormatJSON, NetworkJSON, renderNetworkJSON},
		{FormatParquet, ReturnsParquetFile, func(res *pipeline.Result) ([]byte, error) { return ReturnsParquet(res.Returns) }},
		{FormatParquet, EdgesParquetFile, func(res *pipeline.Result) ([]byte, error) { return EdgesParquet(res.Graph) }},
		{FormatSnapshot, SnapshotFile, renderSnapshot},
	}

	var written []Written
	for _, it := range items {
		if !w.formats[it.format] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		data, err := it.render(res)
		if err != nil {
			return written, fmt.Errorf("render %s: %w", it.name, err)
		}
		key := path.Join(res.RunID, it.name)
		if err := w.store.Put(ctx, key, data); err != nil {
			return written, err
		}

		out := Written{Key: key, Location: w.store.Location(key), Bytes: len(data)}
		written = append(written, out)
		w.logger.Debug("artifact written",
			logging.Path(out.Location),
			logging.Int("bytes", out.Bytes))
	}

	w.logger.Info("artifacts written",
		logging.RunID(res.RunID),
		logging.Count(len(written)))
	return written, nil
}

func renderReturnsCSV(res *pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	err := WriteReturnsCSV(&buf, res.Returns)
	return buf.Bytes(), err
}

func renderCorrelationCSV(res *pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	err := WriteCorrelationCSV(&buf, res.Correlation)
	return buf.Bytes(), err
}

func renderEdgesCSV(res *pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	err := WriteEdgesCSV(&buf, res.Graph)
	return buf.Bytes(), err
}

func renderDegreeCSV(res *pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	err := WriteDegreeCSV(&buf, res.Graph, res.Partition, res.PageRank)
	return buf.Bytes(), err
}

// communities.json maps each ticker to its community label
func renderCommunitiesJSON(res *pipeline.Result) ([]byte, error) {
	return json.MarshalIndent(res.Partition.NodeCommunity, "", "  ")
}

func renderNetworkJSON(res *pipeline.Result) ([]byte, error) {
	return json.MarshalIndent(res.Graph, "", "  ")
}

func renderSnapshot(res *pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	if _, _, err := EncodeSnapshot(&buf, NewSnapshot(res)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
