// Package server exposes the sealing and verification HTTP API. Handlers
// are thin: decode the request, call into the domain packages, write a JSON
// body. Every verification failure is a structured result, never a 500.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/barcode"
	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/verify"
	"github.com/sealify/docseal/wire"
)

// maxUploadBytes bounds document uploads.
const maxUploadBytes = 32 << 20

// Signer is the seal-side collaborator: submits a package, gets back the
// signed facts.
type Signer interface {
	Sign(ctx context.Context, pkg *attestation.Record) (*attestation.SignerResponse, error)
}

type Server struct {
	sessions *Sessions
	verifier *verify.Verifier
	signer   Signer
	engines  *barcode.Registry
	baseURL  string
	logger   *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

func WithEngineRegistry(r *barcode.Registry) ServerOption {
	return func(s *Server) {
		s.engines = r
	}
}

func NewServer(verifier *verify.Verifier, signer Signer, baseURL string, opts ...ServerOption) *Server {
	s := &Server{
		sessions: NewSessions(),
		verifier: verifier,
		signer:   signer,
		engines:  barcode.NewRegistry(),
		baseURL:  baseURL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v/{token}", s.HandleToken).Methods("GET", "OPTIONS")
	r.HandleFunc("/verifyDocument", s.HandleVerifyDocument).Methods("POST", "OPTIONS")
	r.HandleFunc("/sealDocument", s.HandleSealDocument).Methods("POST", "OPTIONS")
	r.HandleFunc("/scanDocument", s.HandleScanDocument).Methods("POST", "OPTIONS")
	r.HandleFunc("/result/{id}", s.HandleResult).Methods("GET", "OPTIONS")
}

type tokenResponse struct {
	Valid     bool           `json:"valid"`
	ErrorCode string         `json:"errorCode,omitempty"`
	Record    *recordSummary `json:"record,omitempty"`
}

type recordSummary struct {
	Provider     string          `json:"provider"`
	Identifier   string          `json:"identifier"`
	Timestamp    string          `json:"timestamp"`
	ServiceKeyID string          `json:"serviceKeyId"`
	Signed       bool            `json:"signed"`
	UserURL      string          `json:"userUrl,omitempty"`
	Zone         *imagehash.Zone `json:"exclusionZone,omitempty"`
}

// HandleToken decodes a scanned token without touching any document. The
// UI uses it to show who sealed what before the user uploads a candidate.
func (s *Server) HandleToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	decoded := wire.DecodeChecked(token)
	if !decoded.Valid {
		writeJSON(w, http.StatusOK, tokenResponse{ErrorCode: decoded.ErrorCode})
		return
	}

	rec := decoded.Record
	writeJSON(w, http.StatusOK, tokenResponse{
		Valid: true,
		Record: &recordSummary{
			Provider:     rec.Identity.Provider,
			Identifier:   rec.Identity.Identifier,
			Timestamp:    rec.Timestamp.Format(time.RFC3339),
			ServiceKeyID: rec.ServiceKeyID,
			Signed:       rec.Signed(),
			UserURL:      rec.UserURL,
			Zone:         rec.ExclusionZone(),
		},
	})
}

type verifyResponse struct {
	SessionID string         `json:"session_id"`
	Result    *verify.Result `json:"result"`
}

// HandleVerifyDocument verifies an uploaded document against a token.
func (s *Server) HandleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	img, _, err := s.readDocument(r)
	if err != nil {
		s.respondVerify(w, &verify.Result{Status: verify.StatusErrorInvalidFormat, Detail: err.Error()})
		return
	}

	token := r.FormValue("token")
	result := s.verifier.VerifyToken(r.Context(), img, token)
	s.logger.Info("verification finished", "status", result.Status)
	s.respondVerify(w, result)
}

func (s *Server) respondVerify(w http.ResponseWriter, result *verify.Result) {
	id := s.sessions.Save(result)
	writeJSON(w, http.StatusOK, verifyResponse{SessionID: id, Result: result})
}

// HandleResult re-fetches a stored verdict.
func (s *Server) HandleResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sealResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
	QRPNG string `json:"qrPng"`
}

// HandleSealDocument hashes the uploaded document, has the signer complete
// the package and returns the token plus a rendered QR tile.
func (s *Server) HandleSealDocument(w http.ResponseWriter, r *http.Request) {
	img, _, err := s.readDocument(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	zone, err := zoneFromForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	hashes, err := imagehash.Compute(img, zone)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	opts := []attestation.Option{attestation.WithZone(*zone)}
	if userURL := r.FormValue("userUrl"); userURL != "" {
		opts = append(opts, attestation.WithUserURL(userURL))
	}

	pkg, err := attestation.NewPackage(
		attestation.ImageHashes{Cryptographic: hashes.Cryptographic, PHash: hashes.PHash, DHash: hashes.DHash},
		attestation.Identity{Provider: r.FormValue("provider"), Identifier: r.FormValue("identifier")},
		opts...,
	)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := s.signer.Sign(r.Context(), pkg)
	if err != nil {
		s.logger.Error("signer call failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	signed, err := pkg.Complete(*resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	token, err := wire.Encode(signed)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	url := wire.VerificationURL(s.baseURL, token)
	png, err := barcode.EncodePNG(url, 512)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("document sealed", "provider", signed.Identity.Provider, "bytes", len(token))
	writeJSON(w, http.StatusOK, sealResponse{
		Token: token,
		URL:   url,
		QRPNG: base64.StdEncoding.EncodeToString(png),
	})
}

type scanResponse struct {
	Found  bool   `json:"found"`
	Token  string `json:"token,omitempty"`
	Engine string `json:"engine"`
}

// HandleScanDocument locates a QR payload in an uploaded image. The engine
// registry may serve the accelerated decoder; its absence only costs time.
func (s *Server) HandleScanDocument(w http.ResponseWriter, r *http.Request) {
	img, _, err := s.readDocument(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	engine := s.engines.Engine(r.Context())
	res, err := engine.Decode(img)
	if err != nil {
		writeJSON(w, http.StatusOK, scanResponse{Engine: engine.Name()})
		return
	}

	out := scanResponse{Found: res.Found, Engine: engine.Name()}
	if res.Found {
		out.Token = wire.TokenFromURL(res.Payload)
	}
	writeJSON(w, http.StatusOK, out)
}

// readDocument pulls the uploaded raster out of the multipart form.
func (s *Server) readDocument(r *http.Request) (image.Image, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("parse upload: %w", err)
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		return nil, "", fmt.Errorf("missing document upload: %w", err)
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	img, err := imagehash.DecodeImage(file, mime)
	if err != nil {
		return nil, mime, err
	}
	return img, mime, nil
}

func zoneFromForm(r *http.Request) (*imagehash.Zone, error) {
	get := func(name string) (int, error) {
		return strconv.Atoi(r.FormValue(name))
	}
	x, err := get("zoneX")
	if err != nil {
		return nil, err
	}
	y, err := get("zoneY")
	if err != nil {
		return nil, err
	}
	width, err := get("zoneWidth")
	if err != nil {
		return nil, err
	}
	height, err := get("zoneHeight")
	if err != nil {
		return nil, err
	}

	fill := r.FormValue("zoneFill")
	if fill == "" {
		fill = "#ffffff"
	}

	zone := &imagehash.Zone{X: x, Y: y, Width: width, Height: height, FillColor: fill}
	if err := zone.Validate(); err != nil {
		return nil, err
	}
	return zone, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
