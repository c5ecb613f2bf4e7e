package assembly

import (
	"context"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

// exportRow is one stage's throughput snapshot at a given window position,
// the unit the driver records via StageTracer so a caller can later diagnose
// where a contig's evidence was absorbed, aggregated, or dropped.
type exportRow struct {
	Stage              string `tsv:"stage"`
	InputCount         int    `tsv:"inputCount"`
	OutputCount        int    `tsv:"outputCount"`
	OpenCount          int    `tsv:"openCount"`
	WindowBasePosition int32  `tsv:"windowBasePosition"`
}

// StageTracer accumulates exportRows across a pipeline run for later export
// as TSV (the optional positional trace). Pipeline.recordTrace calls Record
// once per stage after every ContigAssembler.Next call; a nil
// *StageTracer is valid and Record on it is a no-op, so tracing an untraced
// pipeline costs nothing beyond a nil check.
type StageTracer struct {
	rows []exportRow
}

// NewStageTracer creates an empty tracer.
func NewStageTracer() *StageTracer {
	return &StageTracer{}
}

// Record appends one row to the trace. Safe to call on a nil receiver.
func (t *StageTracer) Record(stage string, inputCount, outputCount, openCount int, windowBasePosition RefPos) {
	if t == nil {
		return
	}
	t.rows = append(t.rows, exportRow{stage, inputCount, outputCount, openCount, int32(windowBasePosition)})
}

// exportPath returns the file the driver should write a contig's trace to:
// <dir>/positional-<contigName>-<direction>.tsv, with a ".gz" suffix when
// gzip is requested.
func exportPath(dir, contigName string, direction Direction, gzipped bool) string {
	path := dir + "/positional-" + contigName + "-" + direction.String() + ".tsv"
	if gzipped {
		path += ".gz"
	}
	return path
}

// WriteCSV renders the trace to path (as resolved by exportPath), gzipping
// the stream when path ends in ".gz". It is a no-op, not an error, on a nil
// tracer: callers can unconditionally defer this after a pipeline run and let
// Config.ExportDir alone decide whether anything gets written.
func (t *StageTracer) WriteCSV(ctx context.Context, path string, gzipped bool) (err error) {
	if t == nil {
		return nil
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)

	w := f.Writer(ctx)
	if gzipped {
		gz := gzip.NewWriter(w)
		defer func() {
			if cerr := gz.Close(); err == nil {
				err = cerr
			}
		}()
		w = gz
	}

	tsvw := tsv.NewRowWriter(w)
	for _, r := range t.rows {
		row := r
		if err = tsvw.Write(&row); err != nil {
			return err
		}
	}
	return tsvw.Flush()
}
