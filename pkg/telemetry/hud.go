package telemetry

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// FormatHUD renders the speed, altitude and throttle readout.
func FormatHUD(f Frame) string {
	return fmt.Sprintf("SPD: %03.0f ALT: %04.0f THR: %.0f%%", f.Speed, f.Altitude, f.Throttle*100)
}

// HorizonAngle is the screen rotation of the artificial horizon in degrees.
// It counter-rotates the bank so the drawn horizon stays level with the world.
func HorizonAngle(f Frame) float64 {
	return -f.Bank
}

// Horizon draws an ASCII artificial horizon.
type Horizon struct {
	width  int
	height int
	buffer [][]rune
}

// NewHorizon creates a horizon of the given character size.
func NewHorizon(width, height int) *Horizon {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}
	return &Horizon{width: width, height: height, buffer: buffer}
}

func (h *Horizon) clear() {
	for y := range h.buffer {
		for x := range h.buffer[y] {
			h.buffer[y][x] = ' '
		}
	}
}

// Render draws the horizon line rotated by angleDeg about the center and
// returns the framed picture.
func (h *Horizon) Render(angleDeg float64) string {
	h.clear()
	if h.width == 0 || h.height == 0 {
		return ""
	}

	slope := math.Tan(mgl64.DegToRad(angleDeg))
	cx := float64(h.width-1) / 2
	cy := float64(h.height-1) / 2
	// characters are roughly twice as tall as they are wide
	for x := 0; x < h.width; x++ {
		y := int(math.Round(cy - slope*(float64(x)-cx)/2))
		if y >= 0 && y < h.height {
			h.buffer[y][x] = '-'
		}
	}
	h.buffer[int(cy)][int(cx)] = '+'

	var sb strings.Builder
	sb.WriteString("+" + strings.Repeat("-", h.width) + "+\n")
	for y := range h.buffer {
		sb.WriteString("|")
		sb.WriteString(string(h.buffer[y]))
		sb.WriteString("|\n")
	}
	sb.WriteString("+" + strings.Repeat("-", h.width) + "+\n")
	return sb.String()
}

// HUDSink writes the HUD line of every Nth frame to a writer.
type HUDSink struct {
	mu    sync.Mutex
	w     io.Writer
	every uint64
}

// NewHUDSink writes one line per every ticks; every below 1 means each tick.
func NewHUDSink(w io.Writer, every int) *HUDSink {
	if every < 1 {
		every = 1
	}
	return &HUDSink{w: w, every: uint64(every)}
}

func (s *HUDSink) Write(_ context.Context, f Frame) error {
	if f.Tick%s.every != 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s t=%.2fs] %s BANK: %+04.0f\n", f.AircraftID, f.Time, FormatHUD(f), f.Bank)
	return err
}

func (s *HUDSink) Close() error { return nil }
