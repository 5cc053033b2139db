// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kernel

import (
	_ "embed"
	"fmt"
	"image/color"
	"math"
)

//go:embed shaders/plasma.wgsl
var plasmaWGSL string

//go:embed shaders/mandelbrot.wgsl
var mandelbrotWGSL string

//go:embed shaders/gradient.wgsl
var gradientWGSL string

// Plasma is an animated interference pattern. It is the default kernel.
var Plasma = Spec{
	Name:        "plasma",
	Description: "animated sine interference plasma",
	WGSL:        plasmaWGSL,
	Shade:       shadePlasma,
}

// Mandelbrot is a breathing zoom into the Mandelbrot set.
var Mandelbrot = Spec{
	Name:        "mandelbrot",
	Description: "Mandelbrot set zooming into the seahorse valley",
	WGSL:        mandelbrotWGSL,
	Shade:       shadeMandelbrot,
}

// Gradient is a static two-axis gradient with a pulsing blue channel.
var Gradient = Spec{
	Name:        "gradient",
	Description: "two-axis color gradient with a pulsing blue channel",
	WGSL:        gradientWGSL,
	Shade:       shadeGradient,
}

// Builtins returns the built-in kernels in selection order.
func Builtins() []Spec {
	return []Spec{Plasma, Mandelbrot, Gradient}
}

// Lookup returns the built-in kernel with the given name.
func Lookup(name string) (Spec, error) {
	for _, s := range Builtins() {
		if s.Name == name {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("%w: %q", ErrUnknownKernel, name)
}

func unorm(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

func shadePlasma(x, y, _, _ int, t float64) color.RGBA {
	fx, fy := float64(x), float64(y)
	v := math.Sin(fx*0.02 + t)
	v += math.Sin(fy*0.03 + t*1.3)
	v += math.Sin((fx+fy)*0.015 + t*0.7)
	v += math.Sin(math.Sqrt(fx*fx+fy*fy)*0.02 - t)

	return color.RGBA{
		R: unorm(0.5 + 0.5*math.Sin(math.Pi*v)),
		G: unorm(0.5 + 0.5*math.Sin(math.Pi*v+2*math.Pi/3)),
		B: unorm(0.5 + 0.5*math.Sin(math.Pi*v+4*math.Pi/3)),
		A: 255,
	}
}

const mandelbrotIterations = 128

func shadeMandelbrot(x, y, width, height int, t float64) color.RGBA {
	w, h := float64(width), float64(height)
	scale := 3 * math.Exp(-3*(0.5-0.5*math.Cos(t*0.25))) / h
	cr := -0.745 + (float64(x)-0.5*w)*scale
	ci := 0.186 + (float64(y)-0.5*h)*scale

	var zr, zi float64
	i := 0
	for ; i < mandelbrotIterations && zr*zr+zi*zi <= 4; i++ {
		zr, zi = zr*zr-zi*zi+cr, 2*zr*zi+ci
	}
	if i == mandelbrotIterations {
		return color.RGBA{A: 255}
	}

	n := float64(i) / mandelbrotIterations
	return color.RGBA{
		R: unorm(0.5 + 0.5*math.Cos(2*math.Pi*n)),
		G: unorm(0.5 + 0.5*math.Cos(2*math.Pi*(n+0.33))),
		B: unorm(0.5 + 0.5*math.Cos(2*math.Pi*(n+0.67))),
		A: 255,
	}
}

func shadeGradient(x, y, width, height int, t float64) color.RGBA {
	return color.RGBA{
		R: unorm(float64(x) / float64(max(width-1, 1))),
		G: unorm(float64(y) / float64(max(height-1, 1))),
		B: unorm(0.5 + 0.5*math.Sin(t)),
		A: 255,
	}
}
