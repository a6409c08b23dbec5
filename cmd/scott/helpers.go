package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeContent prints file content, ending it with a newline when the file
// did not.
func writeContent(w io.Writer, content string) error {
	if content == "" {
		return nil
	}
	if _, err := io.WriteString(w, content); err != nil {
		return err
	}
	if !strings.HasSuffix(content, "\n") {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
