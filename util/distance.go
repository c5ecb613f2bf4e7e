package util

import (
	"fmt"
	"strconv"
	"strings"
)

// matrix represents a 2 dimensional matrix.
type matrix struct {
	nRow, nCol int
	data       []int // row-major nRow*nCol array.
}

// newMatrix returns an n x m matrix.
func newMatrix(n, m int) (x matrix) {
	return matrix{
		nRow: n,
		nCol: m,
		data: make([]int, n*m),
	}
}

// String returns a string representation of a matrix.
func (m matrix) String() (r string) {
	maxLength := 0
	for _, d := range m.data {
		if l := len(strconv.Itoa(d)); l > maxLength {
			maxLength = l
		}
	}

	lines := []string{"\n"}
	for i := 0; i < m.nRow; i++ {
		var parts []string
		for j := 0; j < m.nCol; j++ {
			parts = append(parts, fmt.Sprintf("%0*s", maxLength, strconv.Itoa(m.data[i*m.nCol+j])))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return strings.Join(lines, "\n")
}

// Levenshtein computes the edit distance between two byte sequences: the
// number of single-base insertions, deletions, and substitutions needed to
// transform s1 into s2. Unlike a fixed-length barcode comparison, s1 and s2
// may have different lengths, as is the case when CollapseStage compares two
// candidate path sequences of different length.
func Levenshtein(s1, s2 []byte) int {
	rows, cols := len(s1), len(s2)
	m := newMatrix(rows+1, cols+1)
	for i := 0; i <= rows; i++ {
		m.data[i*m.nCol] = i
	}
	for j := 0; j <= cols; j++ {
		m.data[j] = j
	}
	for i := 1; i <= rows; i++ {
		for j := 1; j <= cols; j++ {
			if s1[i-1] == s2[j-1] {
				m.data[i*m.nCol+j] = m.data[(i-1)*m.nCol+(j-1)]
				continue
			}
			down := m.data[(i-1)*m.nCol+j] + 1
			diag := m.data[(i-1)*m.nCol+(j-1)] + 1
			right := m.data[i*m.nCol+(j-1)] + 1
			min := down
			if diag < min {
				min = diag
			}
			if right < min {
				min = right
			}
			m.data[i*m.nCol+j] = min
		}
	}
	return m.data[rows*m.nCol+cols]
}

// Hamming computes the substitution distance between two equal-length byte
// sequences: the number of positions at which they differ. It panics if the
// two sequences have different lengths, mirroring fusion's stitcher, which
// only ever calls it on two slices of a shared overlap length.
func Hamming(s1, s2 []byte) int {
	if len(s1) != len(s2) {
		panic(fmt.Sprintf("util.Hamming: unequal lengths %d, %d", len(s1), len(s2)))
	}
	d := 0
	for i := range s1 {
		if s1[i] != s2[i] {
			d++
		}
	}
	return d
}
