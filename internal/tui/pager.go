// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"
)

// Pager owns the active page. Selection comes from the keyboard and from
// remote control messages while rendering runs on the refresh tick, so
// every access goes through mu.
type Pager struct {
	mu     sync.Mutex
	pages  []Page
	active int
}

// NewPager activates the first page. It panics on an empty page list.
func NewPager(pages []Page) *Pager {
	if len(pages) == 0 {
		panic("tui: pager needs at least one page")
	}
	pages[0].Init()
	return &Pager{pages: pages}
}

// Select activates page i.
func (p *Pager) Select(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.pages) {
		return fmt.Errorf("page %d out of range [0, %d)", i, len(p.pages))
	}
	p.switchTo(i)
	return nil
}

// SelectName activates the page with the given name.
func (p *Pager) SelectName(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pg := range p.pages {
		if strings.EqualFold(pg.Name(), name) {
			p.switchTo(i)
			return nil
		}
	}
	return fmt.Errorf("unknown page %q", name)
}

// Next activates the following page, wrapping around.
func (p *Pager) Next() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switchTo((p.active + 1) % len(p.pages))
}

// Prev activates the preceding page, wrapping around.
func (p *Pager) Prev() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switchTo((p.active + len(p.pages) - 1) % len(p.pages))
}

func (p *Pager) switchTo(i int) {
	if i == p.active {
		return
	}
	p.pages[p.active].Deinit()
	p.active = i
	p.pages[i].Init()
}

// Active returns the index and name of the active page.
func (p *Pager) Active() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, p.pages[p.active].Name()
}

// Len returns the number of pages.
func (p *Pager) Len() int { return len(p.pages) }

// Render draws the active page.
func (p *Pager) Render(bands, magnitudes []float64, width, height int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages[p.active].Render(bands, magnitudes, width, height)
}
