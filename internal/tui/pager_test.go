// SPDX-License-Identifier: MIT
package tui

import (
	"sync"
	"testing"
)

type countingPage struct {
	name          string
	inits, deinit int
}

func (p *countingPage) Name() string { return p.name }
func (p *countingPage) Init()        { p.inits++ }
func (p *countingPage) Deinit()      { p.deinit++ }
func (p *countingPage) Render(_, _ []float64, _, _ int) string {
	return p.name
}

func newCountingPager() (*Pager, []*countingPage) {
	pages := []*countingPage{{name: "a"}, {name: "b"}, {name: "c"}}
	list := make([]Page, len(pages))
	for i, p := range pages {
		list[i] = p
	}
	return NewPager(list), pages
}

func TestPagerSelect(t *testing.T) {
	p, pages := newCountingPager()
	if i, name := p.Active(); i != 0 || name != "a" {
		t.Fatalf("Active() = %d, %q; want 0, a", i, name)
	}
	if pages[0].inits != 1 {
		t.Errorf("first page Init called %d times, want 1", pages[0].inits)
	}

	if err := p.Select(2); err != nil {
		t.Fatalf("Select(2): %v", err)
	}
	if pages[0].deinit != 1 || pages[2].inits != 1 {
		t.Errorf("switch called Deinit %d / Init %d, want 1 / 1", pages[0].deinit, pages[2].inits)
	}
	if got := p.Render(nil, nil, 1, 1); got != "c" {
		t.Errorf("Render() = %q, want c", got)
	}

	// Reselecting the active page does not restart it.
	if err := p.Select(2); err != nil {
		t.Fatal(err)
	}
	if pages[2].inits != 1 {
		t.Errorf("reselect called Init again")
	}

	for _, bad := range []int{-1, 3} {
		if err := p.Select(bad); err == nil {
			t.Errorf("Select(%d) accepted", bad)
		}
	}
	if i, _ := p.Active(); i != 2 {
		t.Errorf("failed Select changed the page to %d", i)
	}
}

func TestPagerNextPrevWrap(t *testing.T) {
	p, _ := newCountingPager()
	p.Prev()
	if i, _ := p.Active(); i != 2 {
		t.Errorf("Prev from 0 = %d, want 2", i)
	}
	p.Next()
	p.Next()
	if i, _ := p.Active(); i != 1 {
		t.Errorf("after two Next = %d, want 1", i)
	}
}

func TestPagerSelectName(t *testing.T) {
	p := NewPager(NewPages())
	if err := p.SelectName("Spectrum"); err != nil {
		t.Fatalf("SelectName: %v", err)
	}
	if _, name := p.Active(); name != "spectrum" {
		t.Errorf("active = %q, want spectrum", name)
	}
	if err := p.SelectName("oscilloscope"); err == nil {
		t.Error("unknown page accepted")
	}
}

func TestPagerConcurrentAccess(t *testing.T) {
	p := NewPager(NewPages())
	bands := []float64{0.1, 0.9, 0.4}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			_ = p.Select(i % p.Len())
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			p.Render(bands, nil, 12, 4)
		}
	}()
	wg.Wait()
}
