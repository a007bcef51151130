// sealctl is the operator's swiss-army knife: decode a token, seal a
// document against a signer, or verify a candidate file locally.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/barcode"
	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/internal/signer"
	"github.com/sealify/docseal/verify"
	"github.com/sealify/docseal/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = runInspect(os.Args[2:])
	case "seal":
		err = runSeal(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "sealctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  sealctl inspect <token-or-url>
  sealctl seal   -img FILE -provider NAME -id IDENTIFIER [flags]
  sealctl verify -img FILE -token TOKEN -signer URL`)
}

func runInspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("inspect expects exactly one token or URL")
	}

	token := args[0]
	if strings.Contains(token, "/v/") {
		token = wire.TokenFromURL(token)
	}

	rec, err := wire.Decode(token)
	if err != nil {
		return err
	}
	spew.Dump(rec)
	return nil
}

func runSeal(args []string) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	var (
		imgPath    = fs.String("img", "", "document image to seal")
		provider   = fs.String("provider", "", "identity provider name")
		identifier = fs.String("id", "", "identity at the provider")
		zoneSpec   = fs.String("zone", "", "exclusion zone as x,y,w,h")
		zoneFill   = fs.String("fill", "#ffffff", "exclusion zone fill color")
		userURL    = fs.String("user-url", "", "optional profile URL to attest")
		signerURL  = fs.String("signer", envOr("SIGNER_URL", "http://localhost:8080"), "signer base URL")
		credential = fs.String("credential", os.Getenv("SIGNER_CREDENTIAL"), "bearer credential for the signer")
		baseURL    = fs.String("base-url", envOr("BASE_URL", "https://seal.example.com"), "base URL for the verification link")
		qrOut      = fs.String("qr", "", "write the verification QR code PNG here")
	)
	fs.Parse(args)

	img, err := loadImage(*imgPath)
	if err != nil {
		return err
	}

	var zone *imagehash.Zone
	opts := []attestation.Option{}
	if *zoneSpec != "" {
		zone, err = parseZone(*zoneSpec, *zoneFill)
		if err != nil {
			return err
		}
		opts = append(opts, attestation.WithZone(*zone))
	}
	if *userURL != "" {
		opts = append(opts, attestation.WithUserURL(*userURL))
	}

	hashes, err := imagehash.Compute(img, zone)
	if err != nil {
		return err
	}

	pkg, err := attestation.NewPackage(
		attestation.ImageHashes{Cryptographic: hashes.Cryptographic, PHash: hashes.PHash, DHash: hashes.DHash},
		attestation.Identity{Provider: *provider, Identifier: *identifier},
		opts...,
	)
	if err != nil {
		return err
	}

	client := signer.NewClient(*signerURL, signer.WithCredential(*credential))
	resp, err := client.Sign(context.Background(), pkg)
	if err != nil {
		return err
	}

	signed, err := pkg.Complete(*resp)
	if err != nil {
		return err
	}

	token, err := wire.Encode(signed)
	if err != nil {
		return err
	}
	url := wire.VerificationURL(*baseURL, token)

	fmt.Println("token:", token)
	fmt.Println("url:  ", url)

	if *qrOut != "" {
		png, err := barcode.EncodePNG(url, 512)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*qrOut, png, 0o644); err != nil {
			return err
		}
		fmt.Println("qr:   ", *qrOut)
	}
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var (
		imgPath   = fs.String("img", "", "candidate document image")
		token     = fs.String("token", "", "attestation token or verification URL")
		signerURL = fs.String("signer", envOr("SIGNER_URL", "http://localhost:8080"), "signature verification service URL")
	)
	fs.Parse(args)

	img, err := loadImage(*imgPath)
	if err != nil {
		return err
	}

	tok := *token
	if strings.Contains(tok, "/v/") {
		tok = wire.TokenFromURL(tok)
	}

	verifier := verify.NewVerifier(signer.NewClient(*signerURL))
	result := verifier.VerifyToken(context.Background(), img, tok)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Verified() {
		os.Exit(1)
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("-img is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/png"
	}
	return imagehash.DecodeImage(f, mimeType)
}

func parseZone(spec, fill string) (*imagehash.Zone, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("zone must be x,y,w,h")
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("zone component %q: %w", p, err)
		}
		nums[i] = n
	}
	zone := &imagehash.Zone{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3], FillColor: fill}
	if err := zone.Validate(); err != nil {
		return nil, err
	}
	return zone, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
