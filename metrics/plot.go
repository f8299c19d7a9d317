package metrics

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// PlotLosses Draws one line per recorded metric (step on X axis) and saves it to fname. Extension of fname defines format
func PlotLosses(rec *Recorder, fname string) error {
	names := rec.Names()
	if len(names) == 0 {
		return fmt.Errorf("nothing has been recorded")
	}
	p := plot.New()
	p.Title.Text = "Losses"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	for i, name := range names {
		series := rec.Series(name)
		xys := make(plotter.XYs, len(series))
		for j, r := range series {
			xys[j].X = float64(r.Step)
			xys[j].Y = r.Value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "Can't init line for '%s'", name)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// SamplesImage Tiles batch of images [n, H, W, C] with values in [-1, 1] into grid with cols columns.
// Single channel images become grayscale, three channel ones become RGB
func SamplesImage(batch *tensor.Dense, cols int) (image.Image, error) {
	if batch == nil || batch.Dims() != 4 {
		return nil, fmt.Errorf("samples must have shape [n, H, W, C]")
	}
	shape := batch.Shape()
	n, h, w, c := shape[0], shape[1], shape[2], shape[3]
	if c != 1 && c != 3 {
		return nil, fmt.Errorf("can't draw images with %d channels", c)
	}
	data, ok := batch.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("samples must be float64, got %v", batch.Dtype())
	}
	if cols <= 0 || cols > n {
		cols = n
	}
	rows := (n + cols - 1) / cols
	img := image.NewRGBA(image.Rect(0, 0, cols*w, rows*h))
	for k := 0; k < n; k++ {
		ox, oy := (k%cols)*w, (k/cols)*h
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				base := ((k*h+y)*w + x) * c
				if c == 1 {
					v := toByte(data[base])
					img.Set(ox+x, oy+y, color.RGBA{R: v, G: v, B: v, A: 255})
					continue
				}
				img.Set(ox+x, oy+y, color.RGBA{R: toByte(data[base]), G: toByte(data[base+1]), B: toByte(data[base+2]), A: 255})
			}
		}
	}
	return img, nil
}

// PlotSamples Saves grid of generated images to fname
func PlotSamples(batch *tensor.Dense, cols int, fname string) error {
	img, err := SamplesImage(batch, cols)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	p := plot.New()
	p.HideAxes()
	p.Add(plotter.NewImage(img, 0, 0, float64(bounds.Dx()), float64(bounds.Dy())))
	width := 6 * vg.Inch
	height := width * vg.Length(bounds.Dy()) / vg.Length(bounds.Dx())
	if err := p.Save(width, height, fname); err != nil {
		return errors.Wrap(err, "Can't save samples")
	}
	return nil
}

// toByte Maps [-1, 1] onto [0, 255]
func toByte(v float64) uint8 {
	v = v*127.5 + 127.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
