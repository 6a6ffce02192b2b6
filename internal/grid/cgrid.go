package grid

import "github.com/ctessum/sparse"

// The model grids are Arakawa C-grids: scalar (zeta) quantities live at
// cell centers while the u and v transport components live half a cell to
// the west and south. Masks and bathymetry for the staggered nodes are
// derived from the center values.

// MaskNodes constructs wet/dry masks for the u and v nodes from center
// bathymetry. A center cell is wet where its bathymetry is positive.
func MaskNodes(hz *sparse.DenseArray, isGlobal bool) (mu, mv *sparse.DenseArray) {
	mz := sparse.ZerosDense(hz.Shape...)
	for i, v := range hz.Elements {
		if v > 0 {
			mz.Elements[i] = 1
		}
	}
	return InterpolateMask(mz, isGlobal)
}

// InterpolateMask derives the u-node and v-node masks from a zeta-node
// mask. A staggered node is wet only when both adjacent centers are wet:
//
//	mu[i,j] = mz[i,j] * mz[i,j-1]   (x wraps when global, else edge)
//	mv[i,j] = mz[i,j] * mz[i-1,j]   (y always edge-replicated)
func InterpolateMask(mz *sparse.DenseArray, isGlobal bool) (mu, mv *sparse.DenseArray) {
	ny, nx := mz.Shape[0], mz.Shape[1]
	mu = sparse.ZerosDense(ny, nx)
	mv = sparse.ZerosDense(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			jw := westIndex(j, nx, isGlobal)
			mu.Set(mz.Get(i, j)*mz.Get(i, jw), i, j)
			is := i - 1
			if is < 0 {
				is = 0
			}
			mv.Set(mz.Get(i, j)*mz.Get(is, j), i, j)
		}
	}
	return mu, mv
}

// InterpolateZeta interpolates center values onto the u and v nodes as the
// mean of the two adjacent centers, scaled by the staggered masks so dry
// neighbor pairs contribute zero rather than a biased average.
func InterpolateZeta(hz *sparse.DenseArray, isGlobal bool) (hu, hv *sparse.DenseArray) {
	mu, mv := MaskNodes(hz, isGlobal)
	ny, nx := hz.Shape[0], hz.Shape[1]
	hu = sparse.ZerosDense(ny, nx)
	hv = sparse.ZerosDense(ny, nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			jw := westIndex(j, nx, isGlobal)
			hu.Set(0.5*mu.Get(i, j)*(hz.Get(i, jw)+hz.Get(i, j)), i, j)
			is := i - 1
			if is < 0 {
				is = 0
			}
			hv.Set(0.5*mv.Get(i, j)*(hz.Get(is, j)+hz.Get(i, j)), i, j)
		}
	}
	return hu, hv
}

// westIndex returns the column west of j, wrapping across the seam for
// global grids and replicating the edge otherwise.
func westIndex(j, nx int, isGlobal bool) int {
	if j > 0 {
		return j - 1
	}
	if isGlobal {
		return nx - 1
	}
	return 0
}
