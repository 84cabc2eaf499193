package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

// progress renders feed callbacks on a terminal bar. The scope estimate
// frames the bar until the real item count arrives.
type progress struct {
	bar     *progressbar.ProgressBar
	w       io.Writer
	enabled bool
}

func newProgress(w io.Writer, enabled bool) *progress {
	return &progress{w: w, enabled: enabled}
}

func stderrProgress() *progress {
	return newProgress(os.Stderr, !noBar)
}

func (p *progress) ensure(max int) {
	if p.bar != nil {
		if max > 0 && p.bar.GetMax() != max {
			p.bar.ChangeMax(max)
		}
		return
	}
	w := p.w
	p.bar = progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("parsing feed"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
}

func (p *progress) onScope(scope models.Scope) {
	if !p.enabled || scope.Products <= 0 {
		return
	}
	p.ensure(scope.Products)
	p.bar.Describe(fmt.Sprintf("parsing feed (~%d images)", scope.Images))
}

func (p *progress) onProgress(current, total, imagesFound int) {
	if !p.enabled || total <= 0 {
		return
	}
	p.ensure(total)
	p.bar.Describe(fmt.Sprintf("parsing feed (%d images)", imagesFound))
	_ = p.bar.Set(current)
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
