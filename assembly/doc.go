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

// Package assembly performs positional de Bruijn graph assembly of
// non-reference breakend contigs from a position-sorted stream of directed
// structural-variant evidence (soft-clipped read tails and discordant
// read-pair anchors).
//
// The pipeline is a strictly linear chain of lazy, pull-based stages, each
// advancing its predecessor only as far as needed to satisfy one call to its
// own Next:
//
//	EvidenceSource -> PerContigGate -> SupportNodeStage -> AggregateStage -> PathNodeStage
//	                                                      (EvidenceTracker threaded throughout)
//	                                 -> CollapseStage -> SimplifyStage
//	                                 -> ContigAssembler -> assembled contig stream
//
// Every stage is a concrete type with a Next method, not an interface, so the
// chain is monomorphised end to end; the one deliberate exception is the
// pathNodeSource interface at the ContigAssembler boundary, which lets the
// debug interceptor wrap the path-node stages (see pipeline.go). Collapse and
// Simplify always run; no configuration setting removes them from the chain.
package assembly
