// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/slate-foundation/slate/cmd/slate/cli"
	"github.com/slate-foundation/slate/lib/sealed"
	"github.com/slate-foundation/slate/lib/secret"
)

func credentialCommand() *cli.Command {
	return &cli.Command{
		Name:    "credential",
		Summary: "Manage sealed GitHub credentials",
		Description: `Prepare the sealed token files referenced by the service
configuration's credential entries. "keygen" creates the identity the
daemon decrypts with; "seal" encrypts a token to that identity.`,
		Subcommands: []*cli.Command{
			credentialKeygenCommand(),
			credentialSealCommand(),
		},
	}
}

func credentialKeygenCommand() *cli.Command {
	var outPath string

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an identity for sealed credentials",
		Description: `Generate an age x25519 identity. The private key is written to
--out with mode 0600; point a credential's identity_file at it. The
public key is printed for use with "slate credential seal
--recipient".`,
		Usage: "slate credential keygen --out FILE",
		Examples: []cli.Example{
			{Command: "slate credential keygen --out ~/.config/slate/identity.key"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVar(&outPath, "out", "", "identity file to write (mode 0600)")
			return flagSet
		},
		Run: func(args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", outPath)
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			defer keypair.Close()

			identity := keypair.PrivateKey.Bytes()
			content := make([]byte, 0, len(identity)+1)
			content = append(content, identity...)
			content = append(content, '\n')
			err = os.WriteFile(outPath, content, 0o600)
			secret.Zero(content)
			if err != nil {
				return fmt.Errorf("writing identity: %w", err)
			}

			fmt.Printf("identity written to %s\n", outPath)
			fmt.Printf("public key: %s\n", keypair.PublicKey)
			return nil
		},
	}
}

func credentialSealCommand() *cli.Command {
	var recipient string
	var identityFile string
	var tokenFile string
	var outPath string

	return &cli.Command{
		Name:    "seal",
		Summary: "Seal a GitHub token for the service configuration",
		Description: `Encrypt a GitHub token and write the file a credential's
sealed_file references. The recipient is given directly with
--recipient, or derived from an identity file with --identity. The
token is read from --token-file ("-" for stdin), or prompted for on
the terminal with echo disabled.`,
		Usage: "slate credential seal --out FILE [flags]",
		Examples: []cli.Example{
			{Command: "slate credential seal --recipient age1ql3z... --out github.sealed"},
			{
				Description: "Seal to an existing identity",
				Command:     "slate credential seal --identity identity.key --token-file token.txt --out github.sealed",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.StringVar(&recipient, "recipient", "", "age public key to encrypt to")
			flagSet.StringVar(&identityFile, "identity", "", "derive the recipient from this identity file")
			flagSet.StringVar(&tokenFile, "token-file", "", `token file ("-" for stdin; omit to prompt)`)
			flagSet.StringVar(&outPath, "out", "", "sealed token file to write (mode 0600)")
			return flagSet
		},
		Run: func(args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			if (recipient == "") == (identityFile == "") {
				return fmt.Errorf("exactly one of --recipient or --identity is required")
			}

			if recipient != "" {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return err
				}
			} else {
				identity, err := secret.ReadFromPath(identityFile)
				if err != nil {
					return fmt.Errorf("reading identity: %w", err)
				}
				recipient, err = sealed.Recipient(identity)
				identity.Close()
				if err != nil {
					return err
				}
			}

			token, err := readToken(tokenFile)
			if err != nil {
				return err
			}
			defer token.Close()

			ciphertext, err := sealed.Encrypt(token.Bytes(), []string{recipient})
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(ciphertext+"\n"), 0o600); err != nil {
				return fmt.Errorf("writing sealed token: %w", err)
			}
			fmt.Printf("sealed token written to %s\n", outPath)
			return nil
		},
	}
}

// readToken reads the token to seal. With a file (or "-" for stdin) it
// delegates to secret.ReadFromPath; otherwise it prompts on the
// terminal with echo disabled.
func readToken(tokenFile string) (*secret.Buffer, error) {
	if tokenFile != "" {
		return secret.ReadFromPath(tokenFile)
	}

	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return nil, fmt.Errorf("no terminal available for interactive token prompt (use --token-file)")
	}

	fmt.Fprint(os.Stderr, "Token: ")
	tokenBytes, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	trimmed := bytes.TrimSpace(tokenBytes)
	if len(trimmed) == 0 {
		secret.Zero(tokenBytes)
		return nil, fmt.Errorf("empty token")
	}
	buffer, err := secret.NewFromBytes(trimmed)
	secret.Zero(tokenBytes)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
