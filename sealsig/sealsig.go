// Package sealsig produces and checks the detached seal signature: a
// COSE_Sign1 (ES256) over the canonical CBOR encoding of the record with
// the signature field omitted. Signer and verifier both derive the payload
// independently from the record, so the signature bytes never need to carry
// it.
package sealsig

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/wire"
)

// Sign signs the to-be-signed bytes of pkg and returns the serialized
// COSE_Sign1 message. The key id travels in the protected header so the
// verifier can cross-check it against the record's service key id.
func Sign(pkg *attestation.Record, key *ecdsa.PrivateKey, keyID string) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("nil signing key")
	}

	payload, err := wire.EncodeUnsigned(pkg)
	if err != nil {
		return nil, fmt.Errorf("canonical payload: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelKeyID] = []byte(keyID)
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return msg.MarshalCBOR()
}

// Verify checks rec's signature against pub. The payload is recomputed
// from the record itself; a record whose attested fields were altered after
// signing fails here even if the signature bytes are intact.
func Verify(rec *attestation.Record, pub *ecdsa.PublicKey) error {
	if !rec.Signed() {
		return fmt.Errorf("record carries no signature")
	}
	if pub == nil {
		return fmt.Errorf("nil public key")
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(rec.Signature); err != nil {
		return fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	expected, err := wire.EncodeUnsigned(rec)
	if err != nil {
		return fmt.Errorf("canonical payload: %w", err)
	}
	if msg.Payload == nil {
		// Detached form: reattach the recomputed payload.
		msg.Payload = expected
	} else if string(msg.Payload) != string(expected) {
		return fmt.Errorf("signed payload does not match record")
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return fmt.Errorf("signature verification: %w", err)
	}
	return nil
}

// KeyID extracts the key id from the signature's protected header, or ""
// if absent.
func KeyID(signature []byte) string {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(signature); err != nil {
		return ""
	}
	if kid, ok := msg.Headers.Protected[cose.HeaderLabelKeyID].([]byte); ok {
		return string(kid)
	}
	return ""
}
