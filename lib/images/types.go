package images

// Image represents a machine image (AMI) in the provider catalog
type Image struct {
	ID           string
	Name         string
	CreationDate string // ISO-8601, as reported by the provider
	Snapshots    []Snapshot
}

// Snapshot is a block-device snapshot backing an image
type Snapshot struct {
	ID         string
	DeviceName string
	SizeGiB    int64
}
