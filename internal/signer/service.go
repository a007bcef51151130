// Package signer is the reference implementation of the two remote
// collaborators: the signing service that completes an attestation package
// and the signature-verification service consulted during document
// verification. Both are plain JSON over HTTP.
package signer

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/internal/keyring"
	"github.com/sealify/docseal/sealsig"
	"github.com/sealify/docseal/verify"
	"github.com/sealify/docseal/wire"
)

// Allowed skew when judging whether a sealed timestamp is sane.
const timestampSkew = 5 * time.Minute

type Service struct {
	keys   *keyring.Keyring
	secret []byte
	now    func() time.Time
}

func NewService(keys *keyring.Keyring, secret []byte) *Service {
	return &Service{keys: keys, secret: secret, now: time.Now}
}

func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sign", s.HandleSign).Methods("POST", "OPTIONS")
	r.HandleFunc("/verifySignature", s.HandleVerifySignature).Methods("POST", "OPTIONS")
}

// SignRequest is the unsigned package as submitted by the sealing client.
type SignRequest struct {
	Hashes   imagehash.Hashes     `json:"hashes"`
	Identity attestation.Identity `json:"identity"`
	Zone     *imagehash.Zone      `json:"exclusionZone,omitempty"`
	UserURL  string               `json:"userUrl,omitempty"`
	PDF      bool                 `json:"pdf,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) HandleSign(w http.ResponseWriter, r *http.Request) {
	caller, err := authenticate(r, s.secret)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	var req SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	// The identity in the package must be the authenticated caller's.
	if req.Identity != caller {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "package identity does not match authenticated caller"})
		return
	}

	pkg, err := buildPackage(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	resp, err := s.signRecord(pkg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, *resp)
}

// signRecord stamps pkg with the server-owned timestamp and the active key,
// signs it and returns the response the client merges back in. The timestamp
// is truncated to whole seconds so the signed payload survives the codec's
// seconds-precision round trip.
func (s *Service) signRecord(pkg *attestation.Record) (*attestation.SignerResponse, error) {
	keyID, key, err := s.keys.Active()
	if err != nil {
		return nil, errors.New("no signing key available")
	}

	pkg.Timestamp = s.now().UTC().Truncate(time.Second)
	pkg.ServiceKeyID = keyID

	sig, err := sealsig.Sign(pkg, key, keyID)
	if err != nil {
		return nil, errors.New("signing failed")
	}

	publicPEM, err := s.keys.PublicPEM(keyID)
	if err != nil {
		return nil, errors.New("key export failed")
	}

	return &attestation.SignerResponse{
		Timestamp:   pkg.Timestamp,
		Signature:   sig,
		PublicKeyID: keyID,
		PublicKey:   publicPEM,
	}, nil
}

func buildPackage(req SignRequest) (*attestation.Record, error) {
	opts := []attestation.Option{}
	if req.Zone != nil {
		opts = append(opts, attestation.WithZone(*req.Zone))
	}
	if req.UserURL != "" {
		opts = append(opts, attestation.WithUserURL(req.UserURL))
	}

	var hashes attestation.DocumentHashes
	if req.PDF {
		hashes = attestation.PDFHashes{Cryptographic: req.Hashes.Cryptographic}
	} else {
		hashes = attestation.ImageHashes{
			Cryptographic: req.Hashes.Cryptographic,
			PHash:         req.Hashes.PHash,
			DHash:         req.Hashes.DHash,
		}
	}
	return attestation.NewPackage(hashes, req.Identity, opts...)
}

// VerifySignatureRequest carries the complete record in its token form;
// re-encoding on the client side is cheap and keeps one canonical wire
// representation.
type VerifySignatureRequest struct {
	Record string `json:"record"`
}

func (s *Service) HandleVerifySignature(w http.ResponseWriter, r *http.Request) {
	var req VerifySignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	rec, err := wire.Decode(req.Record)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result := s.verifyRecord(rec)
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) verifyRecord(rec *attestation.Record) *verify.SignatureResult {
	result := &verify.SignatureResult{
		PublicKeyID: rec.ServiceKeyID,
		Timestamp:   rec.Timestamp.Format(time.RFC3339),
		Identity:    rec.Identity.Provider + ":" + rec.Identity.Identifier,
		Details:     &verify.SignatureDetails{},
	}

	if !rec.Signed() {
		result.Error = "record carries no signature"
		return result
	}

	pub, err := s.keys.Public(rec.ServiceKeyID)
	if err != nil {
		var notFound keyring.ErrKeyNotFound
		if errors.As(err, &notFound) {
			result.Error = "verification key not found"
			return result
		}
		result.Error = err.Error()
		return result
	}
	result.Details.KeyFound = true

	result.Details.TimestampValid = !rec.Timestamp.After(s.now().Add(timestampSkew))

	if err := sealsig.Verify(rec, pub); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Details.SignatureMatch = true

	result.IsValid = result.Details.KeyFound && result.Details.SignatureMatch && result.Details.TimestampValid
	if !result.IsValid && result.Error == "" {
		result.Error = "timestamp outside acceptable range"
	}
	return result
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
