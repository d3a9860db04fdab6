// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/slate-foundation/slate/lib/clock"
	"github.com/slate-foundation/slate/lib/config"
	"github.com/slate-foundation/slate/lib/github"
	"github.com/slate-foundation/slate/lib/sealed"
	"github.com/slate-foundation/slate/lib/secret"
)

// buildTrackerClients constructs one GitHub API client per configured
// credential. Board bindings select a client by credential name, so a
// single daemon can serve boards under different tokens or App
// installations.
func buildTrackerClients(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (map[string]trackerClient, error) {
	clients := make(map[string]trackerClient, len(cfg.GitHub.Credentials))
	for name, credential := range cfg.GitHub.Credentials {
		client, err := buildTrackerClient(cfg, name, credential, clk, logger)
		if err != nil {
			return nil, fmt.Errorf("credential %q: %w", name, err)
		}
		clients[name] = client
	}
	return clients, nil
}

func buildTrackerClient(cfg *config.Config, name string, credential config.CredentialConfig, clk clock.Clock, logger *slog.Logger) (trackerClient, error) {
	clientConfig := github.Config{
		BaseURL:        cfg.GitHub.BaseURL,
		RequestTimeout: cfg.RequestTimeout(),
		Clock:          clk,
		Logger:         logger.With("credential", name),
	}

	switch credential.Mode() {
	case "token":
		token, err := readTokenFile(credential.TokenFile)
		if err != nil {
			return nil, err
		}
		clientConfig.Token = token

	case "sealed":
		token, err := unsealTokenFile(credential.SealedFile, credential.IdentityFile)
		if err != nil {
			return nil, err
		}
		clientConfig.Token = token

	case "app":
		// The client holds the PEM for its whole lifetime, so there is
		// nothing gained by staging it through a locked buffer.
		privateKey, err := os.ReadFile(credential.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading app private key: %w", err)
		}
		clientConfig.AppID = credential.AppID
		clientConfig.InstallationID = credential.InstallationID
		clientConfig.PrivateKey = privateKey

	default:
		return nil, errors.New("no credential form configured")
	}

	return github.NewClient(clientConfig)
}

func readTokenFile(path string) (string, error) {
	buffer, err := secret.ReadFromPath(path)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	defer buffer.Close()
	return buffer.String(), nil
}

// unsealTokenFile decrypts an age-sealed token (as written by
// `slate credential seal`) with the configured identity key.
func unsealTokenFile(sealedPath, identityPath string) (string, error) {
	ciphertext, err := os.ReadFile(sealedPath)
	if err != nil {
		return "", fmt.Errorf("reading sealed token: %w", err)
	}
	identity, err := secret.ReadFromPath(identityPath)
	if err != nil {
		return "", fmt.Errorf("reading identity: %w", err)
	}
	defer identity.Close()

	token, err := sealed.Decrypt(strings.TrimSpace(string(ciphertext)), identity)
	if err != nil {
		return "", fmt.Errorf("unsealing token: %w", err)
	}
	defer token.Close()
	return token.String(), nil
}
