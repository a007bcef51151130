package verify

// Status is the terminal verdict of one verification run. Every run ends in
// exactly one of these states.
type Status string

const (
	// StatusVerifiedExact: the candidate is byte-identical to the sealed
	// document.
	StatusVerifiedExact Status = "verified_exact"

	// StatusVerifiedVisual: the exact digest differs but at least one
	// perceptual hash family matches, i.e. the document survived lossy
	// re-encoding.
	StatusVerifiedVisual Status = "verified_visual"

	// StatusModified: neither the exact digest nor any perceptual hash
	// family matches.
	StatusModified Status = "modified"

	// StatusErrorHashMismatch: the attested and calculated hashes cannot
	// be compared at all (malformed or wrong-length attested hashes).
	StatusErrorHashMismatch Status = "error_hash_mismatch"

	// StatusErrorInvalidFormat: the token or candidate document is not
	// something this system can verify.
	StatusErrorInvalidFormat Status = "error_invalid_format"

	// StatusErrorProcessing: hashing or a collaborator failed in a way
	// that says nothing about the document itself.
	StatusErrorProcessing Status = "error_processing"

	// StatusErrorSignatureInvalid: the document content checks out but
	// the seal's signature does not verify.
	StatusErrorSignatureInvalid Status = "error_signature_invalid"

	// StatusErrorSignatureMissing: the decoded record was never signed.
	StatusErrorSignatureMissing Status = "error_signature_missing"
)

// Result is the structured verdict. Verification never throws from the
// caller's point of view: every failure mode is a Result.
type Result struct {
	Status Status `json:"status"`

	CryptographicMatch bool    `json:"cryptographicMatch"`
	PerceptualMatch    bool    `json:"perceptualMatch"`
	PHashSimilarity    float64 `json:"pHashSimilarity"`
	DHashSimilarity    float64 `json:"dHashSimilarity"`

	// Signature is populated once the signature collaborator has been
	// consulted; it stays nil when verification short-circuits earlier.
	Signature *SignatureReport `json:"signature,omitempty"`

	Detail string `json:"detail,omitempty"`
}

// Verified reports whether the verdict is one of the two trust states.
func (r *Result) Verified() bool {
	return r.Status == StatusVerifiedExact || r.Status == StatusVerifiedVisual
}

// SignatureReport mirrors what the signature collaborator said, carried
// through so user messaging can distinguish "document unchanged but cannot
// verify who sealed it" from "document changed".
type SignatureReport struct {
	IsValid     bool   `json:"isValid"`
	PublicKeyID string `json:"publicKeyId,omitempty"`
	Error       string `json:"error,omitempty"`

	KeyFound       bool `json:"keyFound"`
	SignatureMatch bool `json:"signatureMatch"`
	TimestampValid bool `json:"timestampValid"`
}
