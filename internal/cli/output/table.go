package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by result types that can lay themselves out
// as columns, such as the user listing.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes the data as a borderless left-aligned table, the
// style used by every list command.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	applyPlainStyle(table)

	for _, row := range data.Rows() {
		table.Append(row)
	}
	table.Render()
	return nil
}

// applyPlainStyle strips tablewriter's default ASCII borders down to
// columns separated by two spaces.
func applyPlainStyle(table *tablewriter.Table) {
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
}
