package vision

import (
	"math"

	"placa-service/internal/domain/plate"
)

// SelectCandidate returns the detection with the highest confidence.
// Ties keep the first one seen.
func SelectCandidate(detections []plate.Detection) (plate.Detection, bool) {
	if len(detections) == 0 {
		return plate.Detection{}, false
	}
	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

// MapRegion converts a normalized box into clamped pixel coordinates.
// The boolean is false when the clamped box has no area.
func MapRegion(candidate plate.Detection, width, height int) (plate.PixelRegion, bool) {
	w := float64(width)
	h := float64(height)

	cx := candidate.XCenter * w
	cy := candidate.YCenter * h
	halfW := candidate.Width * w / 2
	halfH := candidate.Height * h / 2

	region := plate.PixelRegion{
		X1: int(math.Round(cx - halfW)),
		Y1: int(math.Round(cy - halfH)),
		X2: int(math.Round(cx + halfW)),
		Y2: int(math.Round(cy + halfH)),
	}

	if region.X1 < 0 {
		region.X1 = 0
	}
	if region.Y1 < 0 {
		region.Y1 = 0
	}
	if region.X2 > width {
		region.X2 = width
	}
	if region.Y2 > height {
		region.Y2 = height
	}

	return region, region.Valid()
}
