package assembly

import (
	"io"

	"github.com/grailbio/base/tsv"
)

// evidenceRow is the on-disk TSV shape cmd/svassemble reads: evidence
// extraction itself is out of scope for the core (§1), but the CLI needs
// some concrete row format to exercise the pipeline end to end, so this
// mirrors basestrand.go's struct-tag-driven tsv.Reader rather than inventing
// a bespoke parser.
type evidenceRow struct {
	ReferenceIdx  int32  `tsv:"referenceIdx"`
	Start         int32  `tsv:"start"`
	End           int32  `tsv:"end"`
	Direction     string `tsv:"direction"`     // "forward" or "backward"
	Kind          string `tsv:"kind"`          // "softclip" or "pairanchor"
	ReadBases     string `tsv:"readBases"`
	BaseQualities string `tsv:"baseQualities"` // Phred+33-encoded, same length as readBases
	AnchorLength  int    `tsv:"anchorLength"`
}

// tsvEvidenceSource adapts a tsv.Reader of evidenceRows to EvidenceSource.
type tsvEvidenceSource struct {
	r *tsv.Reader
}

// NewTSVEvidenceSource returns an EvidenceSource reading evidenceRows from r,
// in the column order `referenceIdx,start,end,direction,kind,readBases,
// baseQualities,anchorLength`. Columns are read by position; lines starting
// with '#' are skipped as comments, so a header row is accepted only in that
// commented form.
func NewTSVEvidenceSource(r io.Reader) EvidenceSource {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	return &tsvEvidenceSource{r: tr}
}

func (s *tsvEvidenceSource) Next() (Evidence, bool, error) {
	var row evidenceRow
	if err := s.r.Read(&row); err != nil {
		if err == io.EOF {
			return Evidence{}, false, nil
		}
		return Evidence{}, false, err
	}

	dir := Forward
	if row.Direction == "backward" {
		dir = Backward
	}
	kind := SoftClip
	if row.Kind == "pairanchor" {
		kind = PairAnchor
	}

	quals := make([]byte, len(row.BaseQualities))
	for i := 0; i < len(row.BaseQualities); i++ {
		quals[i] = row.BaseQualities[i] - 33
	}

	return Evidence{
		ReferenceIdx:  row.ReferenceIdx,
		Start:         RefPos(row.Start),
		End:           RefPos(row.End),
		Direction:     dir,
		Kind:          kind,
		ReadBases:     []byte(row.ReadBases),
		BaseQualities: quals,
		AnchorLength:  row.AnchorLength,
	}, true, nil
}

// contigRow is the on-disk shape WriteContigsTSV emits: the §6 output
// record's fields, flattened for a struct-tag tsv.RowWriter the same way
// evidenceRow gives tsv.Reader a fixed column set.
type contigRow struct {
	ReferenceIdx      int32  `tsv:"referenceIdx"`
	Anchored          bool   `tsv:"anchored"`
	AnchorPosition    int32  `tsv:"anchorPosition"`
	Direction         string `tsv:"direction"`
	BaseCalls         string `tsv:"baseCalls"`
	BaseQualities     string `tsv:"baseQualities"` // Phred+33-encoded
	AnchoredBaseCount int    `tsv:"anchoredBaseCount"`
	EvidenceCount     int    `tsv:"evidenceCount"`
}

// WriteContigsTSV renders contigs as a TSV, one row each, closing over
// tsv.RowWriter the way basestrand.go's WriteBaseStrandTsv does.
func WriteContigsTSV(w io.Writer, contigs []Contig) error {
	tw := tsv.NewRowWriter(w)
	for _, c := range contigs {
		row := contigRow{
			ReferenceIdx:      c.ReferenceIdx,
			Direction:         c.Direction.String(),
			BaseCalls:         string(c.BaseCalls),
			BaseQualities:     encodePhred(c.BaseQualities),
			AnchoredBaseCount: c.AnchoredBaseCount,
			EvidenceCount:     len(c.SupportingEvidenceIDs),
		}
		if c.AnchorPosition != nil {
			row.Anchored = true
			row.AnchorPosition = int32(*c.AnchorPosition)
		}
		if err := tw.Write(&row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func encodePhred(quals []byte) string {
	out := make([]byte, len(quals))
	for i, q := range quals {
		out[i] = q + 33
	}
	return string(out)
}
