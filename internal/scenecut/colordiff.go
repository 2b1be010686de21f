package scenecut

import (
	"fmt"

	"storyboard/internal/config"
	"storyboard/internal/resource"
)

// Options tunes the detector. Unset thresholds fall back to DefaultOptions;
// a zero IgnoreFraction disables the ignore quota.
type Options struct {
	// DiffThreshold declares a cut on its own.
	DiffThreshold float64
	// DiffDiffThreshold is the floor a spike must clear to count as a cut.
	DiffDiffThreshold float64
	// IgnoreFraction is the share of sampled blocks whose outlying
	// difference may be ignored per frame pair.
	IgnoreFraction float64
	BlockSize      int
	// BlockOutlierThreshold marks a block difference as an outlier.
	BlockOutlierThreshold float64
	// MinSceneFrames is the number of compared frames a scene needs before
	// spike detection applies.
	MinSceneFrames int
	// SpikeFactor is how far above the scene's running mean a spike must be.
	SpikeFactor float64
	// PostCutBoost multiplies both thresholds right after a cut; they decay
	// by the same factor per frame.
	PostCutBoost float64
}

// DefaultOptions returns the built-in tuning.
func DefaultOptions() Options {
	return Options{
		DiffThreshold:         3000,
		DiffDiffThreshold:     700,
		IgnoreFraction:        0.15,
		BlockSize:             8,
		BlockOutlierThreshold: 2500,
		MinSceneFrames:        4,
		SpikeFactor:           8,
		PostCutBoost:          4,
	}
}

// OptionsFromConfig maps the scene_detect config section.
func OptionsFromConfig(cfg config.SceneDetect) Options {
	return Options{
		DiffThreshold:         cfg.DiffThreshold,
		DiffDiffThreshold:     cfg.DiffDiffThreshold,
		IgnoreFraction:        cfg.IgnoreFraction,
		BlockSize:             cfg.BlockSize,
		BlockOutlierThreshold: cfg.BlockOutlierThreshold,
		MinSceneFrames:        cfg.MinSceneFrames,
		SpikeFactor:           cfg.SpikeFactor,
		PostCutBoost:          cfg.PostCutBoost,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DiffThreshold <= 0 {
		o.DiffThreshold = def.DiffThreshold
	}
	if o.DiffDiffThreshold <= 0 {
		o.DiffDiffThreshold = def.DiffDiffThreshold
	}
	if o.IgnoreFraction < 0 || o.IgnoreFraction >= 1 {
		o.IgnoreFraction = def.IgnoreFraction
	}
	if o.BlockSize <= 0 {
		o.BlockSize = def.BlockSize
	}
	if o.BlockOutlierThreshold <= 0 {
		o.BlockOutlierThreshold = def.BlockOutlierThreshold
	}
	if o.MinSceneFrames <= 0 {
		o.MinSceneFrames = def.MinSceneFrames
	}
	if o.SpikeFactor <= 1 {
		o.SpikeFactor = def.SpikeFactor
	}
	if o.PostCutBoost < 1 {
		o.PostCutBoost = def.PostCutBoost
	}
	return o
}

// OverallColorDiff compares two equally sized buffers block by block. One
// block is sampled per 2x2 block square; each sample contributes the sum of
// squared per-channel mean differences. Outlying blocks are left out while
// the ignore quota lasts, so an object entering the frame does not read as a
// cut. The result is the mean over the counted blocks.
func OverallColorDiff(prev, curr *resource.PixelBuffer, opts Options) (float64, error) {
	if prev == nil || curr == nil {
		return 0, fmt.Errorf("color diff: %w", ErrNoThumbnail)
	}
	if !prev.SameSize(curr) {
		return 0, fmt.Errorf("color diff %dx%d vs %dx%d: %w", prev.Width, prev.Height, curr.Width, curr.Height, ErrDimensionMismatch)
	}
	opts = opts.withDefaults()
	block := min(opts.BlockSize, prev.Width, prev.Height)
	if block < 1 {
		return 0, nil
	}
	stride := 2 * block

	total := 0
	for y := 0; y+block <= prev.Height; y += stride {
		for x := 0; x+block <= prev.Width; x += stride {
			total++
		}
	}
	quota := opts.IgnoreFraction * float64(total)

	var sum float64
	counted, ignored := 0, 0
	for y := 0; y+block <= prev.Height; y += stride {
		for x := 0; x+block <= prev.Width; x += stride {
			d := blockDiff(prev, curr, x, y, block)
			if d >= opts.BlockOutlierThreshold && float64(ignored+1) <= quota {
				ignored++
				continue
			}
			sum += d
			counted++
		}
	}
	if counted == 0 {
		return 0, nil
	}
	return sum / float64(counted), nil
}

func blockDiff(prev, curr *resource.PixelBuffer, x0, y0, block int) float64 {
	var pr, pg, pb, cr, cg, cb int
	stride := prev.Width * prev.BPP
	for y := y0; y < y0+block; y++ {
		row := y * stride
		for x := x0; x < x0+block; x++ {
			i := row + x*prev.BPP
			pr += int(prev.Pix[i])
			pg += int(prev.Pix[i+1])
			pb += int(prev.Pix[i+2])
			cr += int(curr.Pix[i])
			cg += int(curr.Pix[i+1])
			cb += int(curr.Pix[i+2])
		}
	}
	n := float64(block * block)
	dr := float64(pr-cr) / n
	dg := float64(pg-cg) / n
	db := float64(pb-cb) / n
	return dr*dr + dg*dg + db*db
}
