package analysis

import (
	"time"

	"vigil-worker-go/internal/models"
)

// vehicleFlow counts vehicles crossing the frame by watching vertical bands
// for large inter-frame changes. A band that flips from quiet to busy counts
// as one passing vehicle. State is per camera and resets on swap, so the
// total restarts when the unit is replaced.
type vehicleFlow struct {
	cameraID string
	prev     []byte
	busy     []bool
	total    float64
}

const (
	flowBands         = 8
	flowBusyThreshold = 25.0 // mean absolute pixel delta that marks a band busy
)

// NewVehicleFlow builds a vehicle flow unit for one camera.
func NewVehicleFlow(cameraID string) Processor {
	return &vehicleFlow{cameraID: cameraID, busy: make([]bool, flowBands)}
}

func (v *vehicleFlow) Process(frame *models.RawFrame) ([]byte, []models.Record, error) {
	current := 0.0
	if v.prev != nil && len(v.prev) == len(frame.Data) {
		bandW := frame.Width / flowBands
		for band := 0; band < flowBands && bandW > 0; band++ {
			delta := meanDelta(frame.Data, v.prev, band*bandW, bandW, frame.Width, frame.Height)
			nowBusy := delta > flowBusyThreshold
			if nowBusy && !v.busy[band] {
				v.total++
			}
			v.busy[band] = nowBusy
			if nowBusy {
				current++
			}
		}
	}
	v.prev = append(v.prev[:0], frame.Data...)

	rec := models.Record{
		CameraID:  v.cameraID,
		Processor: "vehicle_flow",
		Timestamp: time.Now(),
		FrameID:   frame.FrameID,
		Fields: map[string]float64{
			"count": current,
			"total": v.total,
		},
	}
	return frame.Data, []models.Record{rec}, nil
}

// meanDelta returns the mean absolute byte difference between two BGR24
// frames within a vertical band, sampling every fourth pixel.
func meanDelta(cur, prev []byte, x, w, stride, height int) float64 {
	var sum, n float64
	for row := 0; row < height; row += 2 {
		base := row * stride * 3
		for col := x; col < x+w; col += 2 {
			i := base + col*3
			if i+2 >= len(cur) {
				continue
			}
			for c := 0; c < 3; c++ {
				d := int(cur[i+c]) - int(prev[i+c])
				if d < 0 {
					d = -d
				}
				sum += float64(d)
			}
			n += 3
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
