package detector

import "errors"

// ErrInsufficientHistory signals that the series is too short for the chosen strategy
var ErrInsufficientHistory = errors.New("insufficient history")

// ErrInvalidWindowSize signals a non-positive rolling window size
var ErrInvalidWindowSize = errors.New("invalid window size")

// ErrInvalidSpreadFactor signals a non-positive envelope spread factor
var ErrInvalidSpreadFactor = errors.New("invalid spread factor")

// ErrInvalidBounds signals a fixed bounds pair where low exceeds up
var ErrInvalidBounds = errors.New("invalid bounds, low exceeds up")
