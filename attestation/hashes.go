package attestation

// DocumentHashes is the tagged union of hash sets a package can be built
// from. Image documents carry the full exact+perceptual triple; the PDF
// case carries a digest only and never has an exclusion zone.
type DocumentHashes interface {
	documentHashes()
}

// ImageHashes is the raster-document case.
type ImageHashes struct {
	Cryptographic string
	PHash         string
	DHash         string
}

func (ImageHashes) documentHashes() {}

// PDFHashes is the non-raster case. Perceptual hashing of PDF content is
// not defined; only the exact digest is attested.
type PDFHashes struct {
	Cryptographic string
}

func (PDFHashes) documentHashes() {}
