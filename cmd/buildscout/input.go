package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
)

// maxGameFileSize bounds a single build order file.
const maxGameFileSize = 4 * 1024 * 1024

// readGameFile reads a game from path, or stdin when path is "-". The file
// holds either a game object or a bare build order array. Malformed build
// order entries are dropped and returned in Skipped.
func readGameFile(path string, stdin io.Reader) (patternstore.GameInput, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxGameFileSize+1))
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return patternstore.GameInput{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		data, err = io.ReadAll(io.LimitReader(f, maxGameFileSize+1))
	}
	if err != nil {
		return patternstore.GameInput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > maxGameFileSize {
		return patternstore.GameInput{}, fmt.Errorf("%s exceeds %d bytes", path, maxGameFileSize)
	}
	return parseGame(data)
}

func parseGame(data []byte) (patternstore.GameInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return patternstore.GameInput{}, fmt.Errorf("empty build order input")
	}

	var in patternstore.GameInput
	if data[0] == '[' {
		steps, skipped, err := buildorder.Decode(data)
		if err != nil {
			return in, err
		}
		in.BuildOrder, in.Skipped = steps, skipped
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("decode game: %w", err)
	}
	return in, nil
}
