package render

import (
	"fmt"
	"image/color"
	"math/rand/v2"
	"sync"

	"github.com/zeebo/xxh3"
)

const (
	PaletteRandom = "random"
	PaletteSeeded = "seeded"
	PaletteStable = "stable"
)

// A Palette picks the base RGB color of a country.
type Palette interface {
	Color(id string) color.RGBA
}

// NewPalette returns the palette for mode. seed is only used by PaletteSeeded.
func NewPalette(mode string, seed uint64) (Palette, error) {
	switch mode {
	case "", PaletteRandom:
		return randomPalette{}, nil
	case PaletteSeeded:
		return &seededPalette{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}, nil
	case PaletteStable:
		return stablePalette{}, nil
	default:
		return nil, fmt.Errorf("unknown color mode %q", mode)
	}
}

// randomPalette draws from the unseeded global source; colors differ per run.
type randomPalette struct{}

func (randomPalette) Color(string) color.RGBA {
	return rgb(rand.Uint32())
}

// seededPalette repeats across runs for the same seed and feature order.
type seededPalette struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (p *seededPalette) Color(string) color.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rgb(p.rng.Uint32())
}

// stablePalette derives the color from the identifier alone.
type stablePalette struct{}

func (stablePalette) Color(id string) color.RGBA {
	return rgb(uint32(xxh3.HashString(id)))
}

func rgb(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
