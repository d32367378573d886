package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"

	"github.com/wippyai/vrange/gateway"
)

type statsFile struct {
	gateway.Snapshot
	Error      string  `json:"error,omitempty"`
	Mode       string  `json:"mode"`
	Items      int     `json:"items"`
	Ranges     int     `json:"ranges_published"` //nolint:tagliatelle // snake_case for stats file
	Uniform    bool    `json:"uniform"`
	Multiplier float64 `json:"scroll_multiplier"` //nolint:tagliatelle // snake_case for stats file
}

// writeStats replaces path with the JSON stats in one rename, so readers
// never observe a partial file.
func writeStats(path string, s statsFile) error {
	if s.Err != nil {
		s.Error = s.Err.Error()
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}
