// Package mmm provides the vectorized media transforms used in
// marketing-mix models: adstock carryover and saturation curves. The
// transforms are pure elementwise/convolutional kernels over channel spend
// series; model lifecycle, scaling, and inference live elsewhere.
package mmm
