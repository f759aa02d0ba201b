package output

import (
	"bytes"
	"strings"
	"text/tabwriter"
)

// PlainFormatter formats a report as an aligned table followed by its footer.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r Report) error {
	t := r.Table()

	if len(t.Rows) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		if len(t.Header) > 0 {
			if _, err := tw.Write([]byte(strings.Join(t.Header, "\t") + "\n")); err != nil {
				return err
			}
		}
		for _, row := range t.Rows {
			if _, err := tw.Write([]byte(strings.Join(row, "\t") + "\n")); err != nil {
				return err
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(t.Footer) > 0 {
		if len(t.Rows) > 0 {
			w.WriteByte('\n')
		}
		for _, line := range t.Footer {
			w.WriteString(line)
			w.WriteByte('\n')
		}
	}
	return nil
}

// TSVFormatter formats the table rows as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r Report) error {
	t := r.Table()
	if len(t.Header) > 0 {
		w.WriteString(strings.Join(t.Header, "\t"))
		w.WriteByte('\n')
	}
	for _, row := range t.Rows {
		w.WriteString(strings.Join(row, "\t"))
		w.WriteByte('\n')
	}
	return nil
}

// PathsFormatter formats output as one file path per line.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r Report) error {
	for _, p := range r.Table().Paths {
		w.WriteString(p)
		w.WriteByte('\n')
	}
	return nil
}

// NullFormatter formats output as null-delimited paths, for xargs -0.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r Report) error {
	for _, p := range r.Table().Paths {
		w.WriteString(p)
		w.WriteByte(0)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

var (
	_ Formatter = (*PlainFormatter)(nil)
	_ Formatter = (*TSVFormatter)(nil)
	_ Formatter = (*PathsFormatter)(nil)
	_ Formatter = (*NullFormatter)(nil)
)
