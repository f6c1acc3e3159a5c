package image

// Request is a normalized image generation request passed to any provider.
type Request struct {
	Prompt      string
	AspectRatio string
	RequestID   string
	Locale      string
}

// Artifact represents a generated image.
type Artifact struct {
	URL    string
	Format string
}
