package core

import "errors"

var (
	// ErrNotFound signals an empty result where one row was expected.
	ErrNotFound = errors.New("store: not found")

	// ErrEmptyDataset signals that the dataset table has no rows yet
	// (seed never ran). Read endpoints translate it to 503.
	ErrEmptyDataset = errors.New("store: dataset is empty")
)
