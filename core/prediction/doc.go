// Package prediction forecasts hotspot floors, the floors expected to see
// above-normal demand in the near term. The dispatcher treats a predictor as
// an opaque oracle.
package prediction
