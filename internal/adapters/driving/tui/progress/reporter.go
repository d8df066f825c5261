// Package progress renders flash write progress as a single updating line.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/idfflash/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// Ensure Reporter implements the interface.
var _ driven.ProgressReporter = (*Reporter)(nil)

// DefaultInterval is the minimum time between redraws.
const DefaultInterval = 50 * time.Millisecond

const barWidth = 40

// Reporter draws one progress bar per flash segment.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	bar     progress.Model
	styles  *styles.Styles
	limiter *rate.Limiter

	addr    uint32
	total   int
	written int
}

// New creates a reporter writing to out, redrawing at most once per interval.
func New(out io.Writer, interval time.Duration) *Reporter {
	st := styles.DefaultStyles()
	theme := st.Theme()
	return &Reporter{
		out:     out,
		styles:  st,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		bar: progress.New(
			progress.WithGradient(theme.GradientStart, theme.GradientEnd),
			progress.WithWidth(barWidth),
		),
	}
}

// Start begins a segment of total bytes at addr.
func (r *Reporter) Start(addr uint32, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addr = addr
	r.total = total
	r.written = 0
	r.draw()
}

// Update redraws when the rate limit allows it.
func (r *Reporter) Update(written int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = written
	if r.limiter.Allow() {
		r.draw()
	}
}

// Finish draws the completed bar and ends the line.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = r.total
	r.draw()
	fmt.Fprintln(r.out)
}

func (r *Reporter) draw() {
	percent := 1.0
	if r.total > 0 {
		percent = float64(r.written) / float64(r.total)
	}
	fmt.Fprintf(r.out, "\r%s %s %s",
		r.styles.Address.Render(fmt.Sprintf("0x%08x", r.addr)),
		r.bar.ViewAs(percent),
		r.styles.Muted.Render(fmt.Sprintf("%d/%d bytes", r.written, r.total)),
	)
}
