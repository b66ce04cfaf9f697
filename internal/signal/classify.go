package signal

import (
	"github.com/edocrave99/LightSignalDetector/internal/config"
	"github.com/edocrave99/LightSignalDetector/internal/provider"
)

// Classify samples the three lamp positions of cfg's master region in the
// frame's luminance plane and returns the classified state.
//
// An out-of-frame master region is an expected, non-fatal condition (it
// happens mid-edit of a config): the result degrades to UNKNOWN with
// RegionValid false and nothing is sampled.
func Classify(frame *provider.Frame, cfg config.Config) Result {
	res := Result{State: StateUnknown, Brightest: -1}

	if cfg.MasterWidth <= 0 || cfg.MasterHeight <= 0 ||
		cfg.MasterX < 0 || cfg.MasterY < 0 ||
		cfg.MasterX+cfg.MasterWidth > frame.Width ||
		cfg.MasterY+cfg.MasterHeight > frame.Height {
		return res
	}
	res.RegionValid = true

	maxLuma := -1.0
	for i, off := range cfg.LampOffsets() {
		res.Luma[i] = diskMean(frame, cfg, off[0], off[1])
		// Strict comparison: on an exact tie the lower index keeps the win,
		// since lamps are physically exclusive and equal brightness is noise.
		if res.Luma[i] > maxLuma {
			maxLuma = res.Luma[i]
			res.Brightest = i
		}
	}

	if maxLuma > float64(cfg.MinBrightness) {
		res.State = stateForIndex(res.Brightest)
	}
	return res
}

// diskMean computes the mean luminance over the disk of cfg.LampRadius
// centered at (cx, cy) relative to the master region, clipped to the region.
func diskMean(frame *provider.Frame, cfg config.Config, cx, cy int) float64 {
	r := cfg.LampRadius
	r2 := r * r

	var sum, count int64
	for dy := -r; dy <= r; dy++ {
		ry := cy + dy
		if ry < 0 || ry >= cfg.MasterHeight {
			continue
		}
		fy := cfg.MasterY + ry
		for dx := -r; dx <= r; dx++ {
			rx := cx + dx
			if rx < 0 || rx >= cfg.MasterWidth {
				continue
			}
			if dx*dx+dy*dy > r2 {
				continue
			}
			sum += int64(frame.Luma(cfg.MasterX+rx, fy))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
