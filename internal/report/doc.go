// Package report renders analysis results into the artifacts a dissertation
// draws on: CSV tables, an Excel workbook, LaTeX booktabs snippets, figures,
// a plain-text summary, and an optional Google Sheets upload. Tables are
// built once as a format-neutral Table and fed to each writer.
package report
