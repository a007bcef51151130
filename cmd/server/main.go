package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sealify/docseal/barcode"
	"github.com/sealify/docseal/internal/keyring"
	"github.com/sealify/docseal/internal/server"
	"github.com/sealify/docseal/internal/signer"
	"github.com/sealify/docseal/verify"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address")
		baseURL   = flag.String("base-url", envOr("BASE_URL", "https://seal.example.com"), "public base URL embedded in QR codes")
		keyFile   = flag.String("key-file", os.Getenv("SIGNER_KEY_FILE"), "PEM-encoded EC private key; a fresh key is generated when empty")
		keyID     = flag.String("key-id", "default", "key id for a key loaded from -key-file")
		signerURL = flag.String("signer-url", os.Getenv("SIGNER_URL"), "remote signer base URL; empty runs the signer in-process")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	r := mux.NewRouter()
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"POST", "GET"}),
		handlers.AllowedHeaders([]string{"content-type", "authorization"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowCredentials(),
	))

	var sealSigner server.Signer
	var sigVerifier verify.SignatureVerifier

	if *signerURL != "" {
		client := signer.NewClient(*signerURL, signer.WithCredential(os.Getenv("SIGNER_CREDENTIAL")))
		sealSigner, sigVerifier = client, client
		logger.Info("using remote signer", "url", *signerURL)
	} else {
		secret := os.Getenv("SIGNER_SECRET")
		if secret == "" {
			logger.Error("SIGNER_SECRET is required when the signer runs in-process")
			os.Exit(1)
		}

		keys := keyring.New()
		if *keyFile != "" {
			key, err := keyring.LoadPrivateKey(*keyFile)
			if err != nil {
				logger.Error("load signing key", "err", err)
				os.Exit(1)
			}
			if err := keys.Add(*keyID, key); err != nil {
				logger.Error("register signing key", "err", err)
				os.Exit(1)
			}
		} else {
			id, err := keys.Generate()
			if err != nil {
				logger.Error("generate signing key", "err", err)
				os.Exit(1)
			}
			logger.Info("generated ephemeral signing key", "keyId", id)
		}

		svc := signer.NewService(keys, []byte(secret))
		svc.RegisterRoutes(r)
		sealSigner, sigVerifier = svc, svc
	}

	verifier := verify.NewVerifier(sigVerifier)
	srv := server.NewServer(verifier, sealSigner, *baseURL,
		server.WithLogger(logger),
		server.WithEngineRegistry(barcode.NewRegistry()),
	)
	srv.RegisterRoutes(r)

	logger.Info("starting seal server", "addr", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
