package image

// Config holds the layout requested from Alloc.
type Config struct {
	// Size is the total number of words in the image.
	Size Word

	// IndexCapacity is the number of symbol entries the index region holds.
	IndexCapacity Word

	// CodeCapacity is the number of words in the code segment.
	CodeCapacity Word
}

// DefaultConfig returns the default image layout.
func DefaultConfig() Config {
	return Config{
		Size:          24 * 1024,
		IndexCapacity: 1024,
		CodeCapacity:  4096,
	}
}
