package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// csvHeader is the column order written by WriteCSV.
var csvHeader = []string{"name", "hex", "url", "stock"}

// WriteCSV writes entries in the canonical name,hex,url,stock layout. The
// output can be read back with Load.
func WriteCSV(w io.Writer, entries []ReferenceColor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		record := []string{e.Name, e.Hex, e.URL, strconv.Itoa(e.Stock)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write catalog entry %q: %w", e.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return nil
}
