package port

// ImageWalker discovers image files for batch ingestion.
type ImageWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	RelPath string
	ModTime int64
	Size    int64
}
