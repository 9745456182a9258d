package service

const (
	msgNoImage        = "no image received"
	msgUnavailable    = "analysis unavailable, try again later"
	msgTimeout        = "analysis timed out"
	msgUpstreamFailed = "analysis failed"
	msgEmptyResult    = "model returned no text"
	msgPreprocess     = "image could not be prepared"
	msgInternal       = "internal error"
)

const (
	pdfMIMEType       = "application/pdf"
	rasterMIMEType    = "image/jpeg"
	rasterJPEGQuality = 90
)
