package storageengine

import (
	recordmanager "minidb/storage_engine/access/record_manager"
)

// ExecResult is what one statement hands back to the shell.
type ExecResult struct {
	Message string
	Select  *SelectResult
	Quit    bool
}

// SelectResult is a rendered result set: column headers and stringified
// rows. This is the shape the select cache stores, so cached hits skip both
// the scan and the rendering.
type SelectResult struct {
	Table   string
	Columns []string
	Rows    [][]string
}

// renderRows materializes a record manager result set.
func renderRows(table string, rows *recordmanager.Rows) *SelectResult {
	res := &SelectResult{Table: table}
	for i := range rows.Attributes {
		res.Columns = append(res.Columns, rows.Attributes[i].Name)
	}
	for _, record := range rows.Records {
		out := make([]string, len(record))
		for i, key := range record {
			out[i] = key.String()
		}
		res.Rows = append(res.Rows, out)
	}
	return res
}
