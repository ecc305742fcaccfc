package models

import "errors"

var (
	ErrNotFound   = errors.New("upload not found")
	ErrIncomplete = errors.New("upload incomplete")
	ErrPersist    = errors.New("chunk persist failed")
	ErrAssemble   = errors.New("assembly failed")
)
