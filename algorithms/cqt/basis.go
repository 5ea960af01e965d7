package cqt

import (
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-spectra/algorithms/common"
	"github.com/RyanBlaney/sonido-spectra/algorithms/spectral"
)

type sparseRow struct {
	index []int
	value []complex128
}

// SparseBasis is a row-sparse complex matrix holding the frequency
// responses of a filter bank. Each row keeps its non-zero entries in
// ascending column order.
type SparseBasis struct {
	rows []sparseRow
	cols int
}

// Dims returns the number of filters and of frequency bins.
func (b *SparseBasis) Dims() (int, int) { return len(b.rows), b.cols }

// NNZ counts the stored entries.
func (b *SparseBasis) NNZ() int {
	n := 0
	for _, r := range b.rows {
		n += len(r.index)
	}
	return n
}

// RowNNZ counts the stored entries of row i.
func (b *SparseBasis) RowNNZ(i int) int { return len(b.rows[i].index) }

// Dense expands the basis into a dense matrix.
func (b *SparseBasis) Dense() *mat.CDense {
	out := mat.NewCDense(len(b.rows), b.cols, nil)
	for i, r := range b.rows {
		for k, j := range r.index {
			out.Set(i, j, r.value[k])
		}
	}
	return out
}

// Abs returns a basis with the same pattern holding the magnitudes.
func (b *SparseBasis) Abs() *SparseBasis {
	out := &SparseBasis{rows: make([]sparseRow, len(b.rows)), cols: b.cols}
	for i, r := range b.rows {
		values := make([]complex128, len(r.value))
		for k, v := range r.value {
			values[k] = complex(cmplx.Abs(v), 0)
		}
		out.rows[i] = sparseRow{index: r.index, value: values}
	}
	return out
}

// Mul returns the product of the basis with a spectrogram whose rows are
// frequency bins.
func (b *SparseBasis) Mul(d *mat.CDense) (*mat.CDense, error) {
	rows, cols := d.Dims()
	if rows != b.cols {
		return nil, fmt.Errorf("%w: basis has %d bins, spectrogram has %d",
			common.ErrShapeMismatch, b.cols, rows)
	}
	out := mat.NewCDense(len(b.rows), cols, nil)
	raw := d.RawCMatrix()
	dst := out.RawCMatrix()
	for i, r := range b.rows {
		acc := dst.Data[i*dst.Stride : i*dst.Stride+cols]
		for k, bin := range r.index {
			v := r.value[k]
			src := raw.Data[bin*raw.Stride : bin*raw.Stride+cols]
			for j, x := range src {
				acc[j] += v * x
			}
		}
	}
	return out, nil
}

// MulReal multiplies the real parts of the basis with a real spectrogram.
// It is meant for bases returned by Abs.
func (b *SparseBasis) MulReal(d *mat.Dense) (*mat.Dense, error) {
	rows, cols := d.Dims()
	if rows != b.cols {
		return nil, fmt.Errorf("%w: basis has %d bins, spectrogram has %d",
			common.ErrShapeMismatch, b.cols, rows)
	}
	out := mat.NewDense(len(b.rows), cols, nil)
	for i, r := range b.rows {
		acc := out.RawRowView(i)
		for k, bin := range r.index {
			v := real(r.value[k])
			for j, x := range d.RawRowView(bin) {
				acc[j] += v * x
			}
		}
	}
	return out, nil
}

// SparsifyRows drops, per row, the smallest-magnitude entries whose share
// of the row's total magnitude stays below quantile. Entries tied with the
// threshold magnitude are kept.
func SparsifyRows(rows [][]complex128, quantile float64) (*SparseBasis, error) {
	if !(quantile >= 0 && quantile < 1) {
		return nil, fmt.Errorf("%w: sparsity quantile must be in [0, 1), got %v",
			common.ErrInvalidParameter, quantile)
	}
	out := &SparseBasis{rows: make([]sparseRow, len(rows))}
	if len(rows) > 0 {
		out.cols = len(rows[0])
	}

	for i, row := range rows {
		if len(row) != out.cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d",
				common.ErrShapeMismatch, i, len(row), out.cols)
		}
		mags := make([]float64, len(row))
		total := 0.0
		for j, v := range row {
			mags[j] = cmplx.Abs(v)
			total += mags[j]
		}
		sorted := make([]float64, len(mags))
		copy(sorted, mags)
		sort.Float64s(sorted)

		threshold := 0.0
		if len(sorted) > 0 {
			threshold = sorted[0]
		}
		cumulative := 0.0
		for _, m := range sorted {
			cumulative += m / total
			if cumulative >= quantile {
				threshold = m
				break
			}
		}

		var r sparseRow
		for j, m := range mags {
			if m >= threshold && row[j] != 0 {
				r.index = append(r.index, j)
				r.value = append(r.value, row[j])
			}
		}
		out.rows[i] = r
	}
	return out, nil
}

// FilterFFT builds the sparse frequency-domain basis of a filter bank.
// Filters are padded to a power of two, widened to at least twice the
// next power of two above hopLength when hopLength is positive, scaled by
// length/nFFT and transformed; only the non-negative frequencies are kept.
func FilterFFT(cfg FilterConfig, hopLength int, sparsity float64) (*SparseBasis, int, []float64, error) {
	cfg.PadFFT = true
	basis, lengths, err := ConstantQ(cfg)
	if err != nil {
		return nil, 0, nil, err
	}

	nFFT := len(basis[0])
	if hopLength > 0 {
		nFFT = max(nFFT, 2*common.NextPowerOfTwo(hopLength))
	}

	fft := spectral.NewFFT()
	spectra := make([][]complex128, len(basis))
	for i, filter := range basis {
		gain := complex(lengths[i]/float64(nFFT), 0)
		scaled := make([]complex128, len(filter))
		for t, v := range filter {
			scaled[t] = v * gain
		}
		spectra[i] = fft.Complex(scaled, nFFT)[:nFFT/2+1]
	}

	sparse, err := SparsifyRows(spectra, sparsity)
	if err != nil {
		return nil, 0, nil, err
	}
	return sparse, nFFT, lengths, nil
}
