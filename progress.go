package main

import (
	"fmt"
	"io"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/extract"
)

// progressPrinter 在同一行刷新提取进度。
type progressPrinter struct {
	w       io.Writer
	quiet   bool
	printed bool
}

func newProgressPrinter(w io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{w: w, quiet: quiet}
}

func (p *progressPrinter) update(ev extract.ProgressEvent) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, "\r提取中 %3.0f%% (%d/%d)", ev.Fraction()*100, ev.Done, ev.Total)
	p.printed = true
}

func (p *progressPrinter) finish() {
	if p.printed {
		fmt.Fprintln(p.w)
	}
}
