package analysis

import (
	"time"

	"vigil-worker-go/internal/models"
)

// personCounter estimates occupancy by counting bright foreground blocks.
// The frame is divided into a coarse grid; a block whose mean luminance
// stands out from the frame average by a fixed margin is treated as occupied.
// It is a cheap stand-in for a detector model and reports the same fields
// a model-backed counter would: current count and a running peak.
type personCounter struct {
	cameraID string
	peak     float64
}

const (
	personGridCols       = 16
	personGridRows       = 9
	personLumaMargin     = 40.0
	personBlocksPerTruth = 3 // grid blocks that make up one counted person
)

// NewPersonCounter builds a person counting unit for one camera.
func NewPersonCounter(cameraID string) Processor {
	return &personCounter{cameraID: cameraID}
}

func (p *personCounter) Process(frame *models.RawFrame) ([]byte, []models.Record, error) {
	blocks := brightBlocks(frame, personGridCols, personGridRows, personLumaMargin)
	count := float64(blocks / personBlocksPerTruth)
	if count > p.peak {
		p.peak = count
	}

	rec := models.Record{
		CameraID:  p.cameraID,
		Processor: "person_counter",
		Timestamp: time.Now(),
		FrameID:   frame.FrameID,
		Fields: map[string]float64{
			"count": count,
			"peak":  p.peak,
		},
	}
	return frame.Data, []models.Record{rec}, nil
}

// brightBlocks counts grid blocks whose mean luminance exceeds the frame
// mean by margin. Works directly on packed BGR24 bytes.
func brightBlocks(frame *models.RawFrame, cols, rows int, margin float64) int {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) < frame.Width*frame.Height*3 {
		return 0
	}

	frameMean := meanLuma(frame.Data, 0, 0, frame.Width, frame.Height, frame.Width)

	blockW := frame.Width / cols
	blockH := frame.Height / rows
	if blockW == 0 || blockH == 0 {
		return 0
	}

	hot := 0
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			m := meanLuma(frame.Data, bx*blockW, by*blockH, blockW, blockH, frame.Width)
			if m-frameMean > margin {
				hot++
			}
		}
	}
	return hot
}

// meanLuma returns the mean luminance of a BGR24 region, sampling every
// fourth pixel to keep per-frame cost low.
func meanLuma(data []byte, x, y, w, h, stride int) float64 {
	var sum, n float64
	for row := y; row < y+h; row += 2 {
		base := row * stride * 3
		for col := x; col < x+w; col += 2 {
			i := base + col*3
			if i+2 >= len(data) {
				continue
			}
			b, g, r := float64(data[i]), float64(data[i+1]), float64(data[i+2])
			sum += 0.114*b + 0.587*g + 0.299*r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
