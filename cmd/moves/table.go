package main

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// column is one column of command output
type column struct {
	header string
	align  tw.Align
	// max truncates longer cells; zero leaves the column unbounded
	max int
}

var (
	infoColumns = []column{
		{header: "Setting", align: tw.AlignLeft},
		{header: "Value", align: tw.AlignLeft},
	}
	statusColumns = []column{
		{header: "", align: tw.AlignCenter},
		{header: "Revision", align: tw.AlignLeft, max: 64},
		{header: "Applied", align: tw.AlignLeft},
	}
	modelColumns = []column{
		{header: "Module", align: tw.AlignLeft},
		{header: "Models", align: tw.AlignLeft},
	}
	seedColumns = []column{
		{header: "Table", align: tw.AlignLeft},
		{header: "Created", align: tw.AlignRight},
		{header: "Existing", align: tw.AlignRight},
	}
)

// renderTable writes rows as borderless, space separated columns
func renderTable(w io.Writer, columns []column, rows [][]string) error {
	header := make([]string, len(columns))
	aligns := make([]tw.Align, len(columns))
	widths := tw.NewMapper[int, int]()
	wrap := tw.WrapNone
	for i, c := range columns {
		header[i] = c.header
		aligns[i] = c.align
		if c.max > 0 {
			widths.Set(i, c.max)
			wrap = tw.WrapTruncate
		}
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Symbols: tw.NewSymbols(tw.StyleASCII),
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowTop:        tw.Off,
					ShowBottom:     tw.Off,
					ShowHeaderLine: tw.Off,
					ShowFooterLine: tw.Off,
				},
				Separators: tw.Separators{
					ShowHeader:     tw.Off,
					ShowFooter:     tw.Off,
					BetweenRows:    tw.Off,
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft, PerColumn: aligns},
			},
			Row: tw.CellConfig{
				Formatting:   tw.CellFormatting{AutoWrap: wrap},
				Alignment:    tw.CellAlignment{Global: tw.AlignLeft, PerColumn: aligns},
				ColMaxWidths: tw.CellWidth{PerColumn: widths},
			},
		}),
	)

	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
