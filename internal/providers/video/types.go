package video

// Request is a normalized video generation request passed to any provider.
type Request struct {
	Prompt          string
	DurationSeconds float64
	Camera          string
	RequestID       string
}

// Artifact represents a generated video clip.
type Artifact struct {
	URL           string
	Format        string
	LengthSeconds int
}
