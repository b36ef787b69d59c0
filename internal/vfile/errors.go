package vfile

import "errors"

var (
	errNotReadable = errors.New("vfile: file is not open for reading")
	errNotWritable = errors.New("vfile: file is not open for writing")
)
