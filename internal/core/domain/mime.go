package domain

// Supported input MIME types. Text-bearing types go through the extraction
// stage; image types have no text layer and route directly to OCR.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeText = "text/plain"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeGIF  = "image/gif"
	MimeWEBP = "image/webp"
	MimeTIFF = "image/tiff"
)

var textExtractableMimes = map[string]struct{}{
	MimePDF:  {},
	MimeDOCX: {},
	MimeDOC:  {},
	MimeXLSX: {},
	MimeText: {},
}

var imageMimes = map[string]struct{}{
	MimePNG:  {},
	MimeJPEG: {},
	MimeGIF:  {},
	MimeWEBP: {},
	MimeTIFF: {},
}

func IsTextExtractable(mimeType string) bool {
	_, ok := textExtractableMimes[mimeType]
	return ok
}

func IsImage(mimeType string) bool {
	_, ok := imageMimes[mimeType]
	return ok
}

func IsSupportedMime(mimeType string) bool {
	return IsTextExtractable(mimeType) || IsImage(mimeType)
}
