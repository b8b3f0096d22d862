package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that render as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w, "")
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// KeyValues is an ordered list of label/value pairs rendered as a two
// column table without headers.
type KeyValues [][2]string

// Add appends a pair.
func (kv *KeyValues) Add(key, value string) {
	*kv = append(*kv, [2]string{key, value})
}

// PrintKeyValues writes kv as "key:  value" lines.
func PrintKeyValues(w io.Writer, kv KeyValues) error {
	table := newTable(w, ":")
	for _, pair := range kv {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
	return nil
}

// Table is a TableRenderer built row by row.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates an empty table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, rows: [][]string{}}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *Table) Headers() []string { return t.headers }
func (t *Table) Rows() [][]string  { return t.rows }

func newTable(w io.Writer, columnSeparator string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(columnSeparator)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
