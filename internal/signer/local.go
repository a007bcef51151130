package signer

import (
	"context"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/verify"
)

// Sign is the in-process counterpart of HandleSign, used when the signer
// runs inside the sealing server's process. Authentication is the caller's
// concern at this boundary.
func (s *Service) Sign(_ context.Context, pkg *attestation.Record) (*attestation.SignerResponse, error) {
	// Sign a copy; the caller merges the response via Complete.
	working := *pkg
	return s.signRecord(&working)
}

// VerifySignature is the in-process counterpart of HandleVerifySignature.
func (s *Service) VerifySignature(_ context.Context, rec *attestation.Record) (*verify.SignatureResult, error) {
	return s.verifyRecord(rec), nil
}

var _ verify.SignatureVerifier = (*Service)(nil)
