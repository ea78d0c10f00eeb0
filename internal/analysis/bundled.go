package analysis

// Bundled returns the analysis units shipped with the worker.
func Bundled() []Descriptor {
	return []Descriptor{
		{
			ID:          "person_counter",
			Label:       "People Counter",
			Description: "Counts people in view and tracks the running peak",
			Factory:     NewPersonCounter,
		},
		{
			ID:          "vehicle_flow",
			Label:       "Vehicle Flow",
			Description: "Counts vehicles crossing the frame per lane band",
			Factory:     NewVehicleFlow,
		},
		{
			ID:          "intrusion",
			Label:       "Intrusion Detection",
			Description: "Flags frames where more than 5% of the scene moved",
			Factory:     NewIntrusionDetector,
		},
	}
}
