//go:build !unix

package main

import (
	"errors"
	"os"
)

func openFIFO(string) (*os.File, error) {
	return nil, errors.New("fifo sources are only supported on unix")
}
