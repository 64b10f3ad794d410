package artifact

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/dd0wney/cluso-corrnet/pkg/algorithms"
	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

// DateLayout formats return row dates
const DateLayout = "2006-01-02"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteReturnsCSV writes Date,<tickers...> with one row per return interval,
// dated by the interval end. Absent returns are empty cells.
func WriteReturnsCSV(w io.Writer, rm *market.ReturnsMatrix) error {
	cw := csv.NewWriter(w)
	tickers := rm.Tickers()

	if err := cw.Write(append([]string{"Date"}, tickers...)); err != nil {
		return err
	}
	record := make([]string, len(tickers)+1)
	for row := 0; row < rm.Rows(); row++ {
		record[0] = rm.Interval(row).To.Format(DateLayout)
		for col := range tickers {
			record[col+1] = ""
			if v, ok := rm.At(row, col); ok {
				record[col+1] = formatFloat(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCorrelationCSV writes the square matrix with a header row and a
// leading ticker column. Undefined cells are empty.
func WriteCorrelationCSV(w io.Writer, cm *correlation.Matrix) error {
	cw := csv.NewWriter(w)
	tickers := cm.Tickers()

	if err := cw.Write(append([]string{""}, tickers...)); err != nil {
		return err
	}
	record := make([]string, len(tickers)+1)
	for i, ticker := range tickers {
		record[0] = ticker
		for j := range tickers {
			record[j+1] = ""
			if v, ok := cm.At(i, j); ok {
				record[j+1] = formatFloat(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEdgesCSV writes source,target,weight,correlation in edge order
func WriteEdgesCSV(w io.Writer, g *network.Graph) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "target", "weight", "correlation"}); err != nil {
		return err
	}
	for _, e := range g.Edges() {
		if err := cw.Write([]string{e.Source, e.Target, formatFloat(e.Weight), formatFloat(e.Correlation)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDegreeCSV writes one row per vertex with its degree, weighted degree,
// community label and PageRank score. partition and pagerank may be nil.
func WriteDegreeCSV(w io.Writer, g *network.Graph, partition *algorithms.CommunityDetectionResult, pagerank *algorithms.PageRankResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ticker", "degree", "weighted_degree", "community", "pagerank"}); err != nil {
		return err
	}
	for _, v := range g.Vertices() {
		community := ""
		if partition != nil {
			if id, ok := partition.NodeCommunity[v]; ok {
				community = strconv.Itoa(id)
			}
		}
		rank := ""
		if pagerank != nil {
			rank = formatFloat(pagerank.GetNodeRank(v))
		}
		record := []string{
			v,
			strconv.Itoa(g.Degree(v)),
			formatFloat(g.WeightedDegree(v)),
			community,
			rank,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
