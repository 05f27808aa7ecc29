// Command noise-handshake drives a loopback Noise handshake in-process and
// reports the resulting protocol name and one transport message decrypted
// under the derived keys; the keys themselves are not printed. It exists to
// exercise protocol.New and session.New end to end without any real network
// I/O, per spec.md's exclusion of transport from this repository's scope.
// Generalized from teacher's main.go CLI-entrypoint shape onto cobra
// subcommands instead of a single flag-parsing main.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/expenses/snow/config"
	"github.com/expenses/snow/internal/logging"
	"github.com/expenses/snow/noise"
	"github.com/expenses/snow/noise/dh"
	"github.com/expenses/snow/protocol"
	"github.com/expenses/snow/session"
)

var logLevel string

func main() {
	root := &cobra.Command{
		Use:   "noise-handshake",
		Short: "Exercise a Noise protocol handshake without any network I/O",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	root.AddCommand(newLoopbackCommand(), newConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLoopbackCommand() *cobra.Command {
	var pattern, dhName, cipherName, hashName string

	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Run both sides of a handshake in-process and print the protocol name and a transport message",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.ParseLevel(logLevel), os.Stdout)
			return runLoopback(log, pattern, dhName, cipherName, hashName)
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "XX", "handshake pattern and modifiers, e.g. XXpsk3")
	cmd.Flags().StringVar(&dhName, "dh", "25519", "dh function name")
	cmd.Flags().StringVar(&cipherName, "cipher", "ChaChaPoly", "cipher name")
	cmd.Flags().StringVar(&hashName, "hash", "BLAKE2s", "hash name")
	return cmd
}

func runLoopback(log *logging.Logger, pattern, dhName, cipherName, hashName string) error {
	name := fmt.Sprintf("Noise_%s_%s_%s_%s", pattern, dhName, cipherName, hashName)
	d := dh.X25519{}

	staticI, err := d.GenerateKeypair(noise.DefaultRandom())
	if err != nil {
		return err
	}
	staticR, err := d.GenerateKeypair(noise.DefaultRandom())
	if err != nil {
		return err
	}

	lookup := noise.BuiltinPatterns{}
	base, mods := noise.ParsePatternName(pattern)
	tokens, err := lookup.Lookup(base, mods)
	if err != nil {
		return err
	}

	optsI := protocol.Options{Initiator: true, StaticKeypair: &staticI}
	optsR := protocol.Options{StaticKeypair: &staticR}
	for _, tok := range tokens.PreMessageResponder {
		if tok.Kind == noise.TokenS {
			optsI.PeerStatic = staticR.Public
		}
	}
	for _, tok := range tokens.PreMessageInitiator {
		if tok.Kind == noise.TokenS {
			optsR.PeerStatic = staticI.Public
		}
	}
	var psks [noise.MaxPSKs][]byte
	for _, msg := range tokens.Messages {
		for _, tok := range msg {
			if tok.Kind == noise.TokenPSK {
				psks[tok.N] = make([]byte, noise.PSKLen)
				if err := noise.DefaultRandom().Fill(psks[tok.N]); err != nil {
					return err
				}
			}
		}
	}
	optsI.PresharedKeys = psks
	optsR.PresharedKeys = psks

	hsI, err := protocol.New(name, optsI)
	if err != nil {
		return err
	}
	hsR, err := protocol.New(name, optsR)
	if err != nil {
		return err
	}

	log.Info("handshake starting", map[string]interface{}{"protocol": name})

	buf := make([]byte, noise.MaxMessageLen)
	out := make([]byte, 0, noise.MaxMessageLen)
	writer, reader := hsI, hsR
	for i := 0; !writer.IsFinished() || !reader.IsFinished(); i++ {
		n, err := writer.WriteMessage(buf, nil)
		if err != nil {
			return err
		}
		if _, err := reader.ReadMessage(buf[:n], out[:0]); err != nil {
			return err
		}
		log.Debug("handshake message exchanged", map[string]interface{}{"index": i, "bytes": n})
		writer, reader = reader, writer
	}

	ci1, ci2, protoName, err := hsI.Finish()
	if err != nil {
		return err
	}
	cr1, cr2, _, err := hsR.Finish()
	if err != nil {
		return err
	}

	initiator := session.New(ci1, ci2, session.DefaultRekeyPolicy())
	responder := session.New(cr2, cr1, session.DefaultRekeyPolicy())

	nonce, ciphertext, err := initiator.Seal(nil, []byte("hello from the initiator"))
	if err != nil {
		return err
	}
	plaintext, err := responder.Open(nonce, nil, ciphertext)
	if err != nil {
		return err
	}

	log.Info("handshake complete", map[string]interface{}{
		"protocol":  protoName,
		"transport": string(plaintext),
	})
	fmt.Printf("protocol: %s\ntransport message: %s\n", protoName, plaintext)
	return nil
}

func newConfigCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate a Noise endpoint configuration file and print its key fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			priv, err := cfg.StaticPrivateBytes()
			if err != nil {
				return err
			}
			fmt.Printf("role=%s pattern=%s dh=%s cipher=%s hash=%s\n", cfg.Role, cfg.Pattern, cfg.Dh, cfg.Cipher, cfg.Hash)
			if priv != nil {
				fmt.Printf("static_private fingerprint: %s\n", hex.EncodeToString(priv[:8]))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "path to a YAML config file")
	cmd.MarkFlagRequired("file")
	return cmd
}
