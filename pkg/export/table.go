package export

import "fmt"

// Column describes one table column. Weight sets its share of the page width in PDF output;
// zero counts as one.
type Column struct {
	Key    string
	Header string
	Weight float64
}

// Table is tabular export content. Rows are keyed by Column.Key.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []map[string]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table requires at least one column")
	}
	for _, col := range t.Columns {
		if col.Key == "" {
			return fmt.Errorf("column %q has no key", col.Header)
		}
	}
	return nil
}

func (t Table) headers() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Header
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}

func (t Table) record(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = row[col.Key]
	}
	return out
}
