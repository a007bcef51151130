// Package verify reduces {candidate document, decoded attestation record}
// to a single verdict.
//
// The steps run in a strict order: re-hash with the sealed exclusion zone,
// exact comparison, perceptual comparison, then — only if something matched
// — signature verification. A document that matches nothing terminates as
// modified before the signature collaborator is ever consulted; there is no
// point spending a network round-trip on a signature over a document that
// already does not match.
package verify

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/wire"
)

// DefaultThreshold is the inclusive per-family similarity bound: a family
// matches at >= 0.90. Either family matching suffices.
const DefaultThreshold = 0.90

// SignatureVerifier is the external signature-verification collaborator.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, rec *attestation.Record) (*SignatureResult, error)
}

// SignatureResult is the collaborator's answer. Details lets the engine
// distinguish "signature literally does not match" from "server-side
// problem / key not found".
type SignatureResult struct {
	IsValid     bool              `json:"isValid"`
	PublicKeyID string            `json:"publicKeyId,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Identity    string            `json:"identity,omitempty"`
	Error       string            `json:"error,omitempty"`
	Details     *SignatureDetails `json:"details,omitempty"`
}

type SignatureDetails struct {
	KeyFound       bool `json:"keyFound"`
	SignatureMatch bool `json:"signatureMatch"`
	TimestampValid bool `json:"timestampValid"`
}

// Hasher recomputes document hashes; swapped out in tests.
type Hasher func(img image.Image, zone *imagehash.Zone) (imagehash.Hashes, error)

type Option func(*Verifier)

// WithThreshold overrides the perceptual similarity bound.
func WithThreshold(t float64) Option {
	return func(v *Verifier) {
		v.threshold = t
	}
}

// WithHasher overrides the hash engine.
func WithHasher(h Hasher) Option {
	return func(v *Verifier) {
		v.hasher = h
	}
}

type Verifier struct {
	signatures SignatureVerifier
	threshold  float64
	hasher     Hasher
}

func NewVerifier(signatures SignatureVerifier, opts ...Option) *Verifier {
	v := &Verifier{
		signatures: signatures,
		threshold:  DefaultThreshold,
		hasher:     imagehash.Compute,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the full pipeline. It never returns an error: anything that
// goes wrong becomes a Result with an error status. Each invocation works
// on its own buffers, so concurrent verifications of different documents
// cannot observe each other.
func (v *Verifier) Verify(ctx context.Context, img image.Image, rec *attestation.Record) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Status: StatusErrorProcessing, Detail: fmt.Sprintf("panic during verification: %v", r)}
		}
	}()

	if rec == nil {
		return &Result{Status: StatusErrorInvalidFormat, Detail: "no attestation record"}
	}

	// Step 1: re-hash the candidate with the zone decoded from the
	// attestation, never a re-detected one.
	calculated, err := v.hasher(img, rec.ExclusionZone())
	if err != nil {
		var unsupported imagehash.ErrUnsupportedType
		if errors.As(err, &unsupported) {
			return &Result{Status: StatusErrorInvalidFormat, Detail: err.Error()}
		}
		return &Result{Status: StatusErrorProcessing, Detail: err.Error()}
	}

	// Step 2: exact comparison.
	res = &Result{
		CryptographicMatch: calculated.Cryptographic == rec.Hashes.Cryptographic,
	}

	// Step 3: perceptual comparison. Either family matching suffices; the
	// families are independent corroborating signals.
	pSim, pErr := imagehash.Similarity(calculated.PHash, rec.Hashes.PHash)
	dSim, dErr := imagehash.Similarity(calculated.DHash, rec.Hashes.DHash)
	if pErr != nil && dErr != nil && !res.CryptographicMatch {
		// The attested hashes cannot be compared against anything this
		// engine produces; that is a hash problem, not a tamper verdict.
		res.Status = StatusErrorHashMismatch
		res.Detail = fmt.Sprintf("pHash: %v; dHash: %v", pErr, dErr)
		return res
	}
	res.PHashSimilarity = pSim
	res.DHashSimilarity = dSim
	res.PerceptualMatch = (pErr == nil && pSim >= v.threshold) || (dErr == nil && dSim >= v.threshold)

	// Step 4: short-circuit before any collaborator call.
	if !res.CryptographicMatch && !res.PerceptualMatch {
		res.Status = StatusModified
		return res
	}

	// Step 5: signature verification.
	if !rec.Signed() {
		res.Status = StatusErrorSignatureMissing
		return res
	}

	sigResult, err := v.signatures.VerifySignature(ctx, rec)
	if err != nil {
		res.Status = StatusErrorProcessing
		res.Detail = fmt.Sprintf("signature collaborator: %v", err)
		return res
	}
	res.Signature = report(sigResult)

	if !sigResult.IsValid {
		if sigResult.Details != nil && !sigResult.Details.KeyFound {
			// Key not found is a server-side condition, not a statement
			// about the signature itself.
			res.Status = StatusErrorProcessing
			res.Detail = "verification key not found"
			return res
		}
		res.Status = StatusErrorSignatureInvalid
		res.Detail = sigResult.Error
		return res
	}

	// Step 6: exact beats visual.
	if res.CryptographicMatch {
		res.Status = StatusVerifiedExact
	} else {
		res.Status = StatusVerifiedVisual
	}
	return res
}

// VerifyToken decodes a scanned token and verifies img against it. Decode
// failures are routine scan outcomes and map to an invalid-format result.
func (v *Verifier) VerifyToken(ctx context.Context, img image.Image, token string) *Result {
	decoded := wire.DecodeChecked(token)
	if !decoded.Valid {
		return &Result{Status: StatusErrorInvalidFormat, Detail: decoded.Detail}
	}
	return v.Verify(ctx, img, decoded.Record)
}

func report(sr *SignatureResult) *SignatureReport {
	rep := &SignatureReport{
		IsValid:     sr.IsValid,
		PublicKeyID: sr.PublicKeyID,
		Error:       sr.Error,
	}
	if sr.Details != nil {
		rep.KeyFound = sr.Details.KeyFound
		rep.SignatureMatch = sr.Details.SignatureMatch
		rep.TimestampValid = sr.Details.TimestampValid
	} else if sr.IsValid {
		rep.KeyFound = true
		rep.SignatureMatch = true
		rep.TimestampValid = true
	}
	return rep
}
