package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/contest/go/internal/signer"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func run(ctx context.Context, out io.Writer, cfg *Config) error {
	if cfg.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	identity, blobs, err := credentials(cfg)
	if err != nil {
		return err
	}

	s := signer.New(identity, blobs, signer.Config{Clock: clockwork.NewRealClock()})

	if cfg.verbose {
		prepared, err := s.Prepare(ctx, signer.Request{
			Path:    "/" + cfg.bucket + "/" + cfg.object,
			Expires: cfg.expires,
			Method:  cfg.method,
			Headers: cfg.headerMap(),
		})
		if err != nil {
			return err
		}
		log.Debug().
			Str("email", prepared.Email).
			Str("canonical_request", prepared.CanonicalRequest).
			Str("string_to_sign", prepared.StringToSign).
			Msg("prepared signature")
	}

	url, err := s.SignObjectURL(ctx, cfg.bucket, cfg.object, cfg.expires, cfg.method, cfg.headerMap())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, url)
	return err
}

// credentials picks a local key when one is given, otherwise the metadata
// identity with remote IAM signing.
func credentials(cfg *Config) (signer.IdentityResolver, signer.BlobSigner, error) {
	if cfg.keyFile != "" {
		keySigner, email, err := signer.LoadKeyFile(cfg.keyFile)
		if err != nil {
			return nil, nil, err
		}
		if cfg.email != "" {
			email = cfg.email
		}
		if email == "" {
			return nil, nil, fmt.Errorf("--email is required for a PEM key file")
		}
		return signer.StaticIdentity(email), keySigner, nil
	}

	metadata := signer.NewMetadataIdentity(cfg.metadataURL, nil)
	return metadata, signer.NewIAMBlobSigner(cfg.iamURL, metadata), nil
}
