// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
svassemble drives the positional breakend-contig assembly pipeline over a TSV
evidence file and writes the assembled contigs as TSV. Evidence extraction
(soft-clip parsing, discordant-pair detection) is out of scope here, same as
the core library; this binary only exists to exercise the pipeline end to
end.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/svassembly/assembly"
)

var (
	outPath    = flag.String("out", "", "Output contigs TSV path; defaults to stdout")
	kmerLength = flag.Int("k", assembly.DefaultConfig.KmerLength, "Kmer length (odd, 4-31)")
	anchorLen  = flag.Int("anchor-length", assembly.DefaultConfig.AnchorLength, "Extra distance past the evidence window a root waits before assembly")
	maxPathLen = flag.Int("max-path-length", assembly.DefaultConfig.MaxPathLength, "Maximum kmers folded into one path node")
	maxCollapseLen = flag.Int("max-path-collapse-length", assembly.DefaultConfig.MaxPathCollapseLength, "Maximum hops FullPathCollapse searches for a convergent pair")
	maxMismatch    = flag.Int("max-base-mismatch-for-collapse", assembly.DefaultConfig.MaxBaseMismatchForCollapse, "Maximum mismatching bases tolerated when collapsing two paths")
	bubblesOnly    = flag.Bool("collapse-bubbles-only", assembly.DefaultConfig.CollapseBubblesOnly, "Restrict CollapseStage to bubble collapse instead of FullPathCollapse")
	includePairAnchors = flag.Bool("include-pair-anchors", assembly.DefaultConfig.IncludePairAnchors, "Use discordant read-pair evidence in addition to soft-clips")
	ignoreEndBases = flag.Int("pair-anchor-ignore-end-bases", assembly.DefaultConfig.PairAnchorMismatchIgnoreEndBases, "Kmer start-offsets skipped at each end of a pair-anchor read")
	minFragSize = flag.Int("min-fragment-size", assembly.DefaultConfig.MinConcordantFragmentSize, "Minimum expected concordant fragment size")
	maxFragSize = flag.Int("max-fragment-size", assembly.DefaultConfig.MaxConcordantFragmentSize, "Maximum expected concordant fragment size")
	maxReadLen  = flag.Int("max-read-length", assembly.DefaultConfig.MaxReadLength, "Upper bound on evidence read length")
	recovery    = flag.Bool("recovery", assembly.DefaultConfig.Recovery, "On AssemblyFailure/InvariantViolation, skip to the next reference index instead of aborting")
	debugAssert = flag.Bool("debug-assertions", assembly.DefaultConfig.DebugAssertions, "Enable the tracker-consistency interceptor between stages")
	exportDir   = flag.String("export-dir", "", "If set, write one positional-<contig>-<direction>.tsv trace per pipeline here")
	exportGzip  = flag.Bool("export-gzip", false, "Gzip the export TSV")
)

func usage() {
	fmt.Printf("Usage: %s [OPTIONS] evidence.tsv\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("exactly one positional argument (evidence.tsv) required")
	}
	evidencePath := flag.Arg(0)

	cfg := assembly.Config{
		KmerLength:                       *kmerLength,
		AnchorLength:                     *anchorLen,
		MaxPathLength:                    *maxPathLen,
		MaxPathCollapseLength:            *maxCollapseLen,
		MaxBaseMismatchForCollapse:       *maxMismatch,
		CollapseBubblesOnly:              *bubblesOnly,
		IncludePairAnchors:               *includePairAnchors,
		PairAnchorMismatchIgnoreEndBases: *ignoreEndBases,
		MinConcordantFragmentSize:        *minFragSize,
		MaxConcordantFragmentSize:        *maxFragSize,
		MaxReadLength:                    *maxReadLen,
		Recovery:                         *recovery,
		DebugAssertions:                  *debugAssert,
		ExportDir:                        *exportDir,
		ExportGzip:                       *exportGzip,
	}

	ctx := vcontext.Background()

	in, err := os.Open(evidencePath)
	if err != nil {
		log.Fatalf("opening %s: %v", evidencePath, err)
	}
	defer in.Close()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("creating %s: %v", *outPath, err)
		}
		defer f.Close()
		out = f
	}

	driver := assembly.NewDriver(cfg)
	src := assembly.NewTSVEvidenceSource(in)

	var allContigs []assembly.Contig
	err = driver.RunEach(ctx, src, func(batch assembly.ContigBatch) error {
		allContigs = append(allContigs, batch.Forward...)
		allContigs = append(allContigs, batch.Backward...)
		return nil
	})
	if err != nil {
		log.Panicf("%v", err)
	}

	if err := assembly.WriteContigsTSV(out, allContigs); err != nil {
		log.Panicf("writing output: %v", err)
	}
	log.Debug.Printf("exiting")
}
