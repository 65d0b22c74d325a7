// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mattn/go-tty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/norsh/blockchain/cry"
)

// keygenAction generates a secp256k1 key pair for genesis or client signing.
// When the target file exists, overwriting requires interactive confirmation.
func keygenAction(ctx *cli.Context) error {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(priv))
	pubHex, err := cry.PublicKeyHex(privHex)
	if err != nil {
		return err
	}
	owner, err := cry.Owner(pubHex)
	if err != nil {
		return err
	}

	out := ctx.String(keyFileFlag.Name)
	if out == "" {
		fmt.Printf("privateKey: %v\npublicKey:  %v\nowner:      %v\n", privHex, pubHex, owner)
		return nil
	}

	if _, err := os.Stat(out); err == nil {
		if !confirmOverwrite(out) {
			fmt.Println("aborted")
			return nil
		}
	}

	content := fmt.Sprintf("privateKey: %v\npublicKey: %v\nowner: %v\n", privHex, pubHex, owner)
	if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
		return err
	}
	fmt.Printf("key pair written to %v (owner %v)\n", out, owner)
	return nil
}

func confirmOverwrite(path string) bool {
	t, err := tty.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v exists and no terminal to confirm overwrite\n", path)
		return false
	}
	defer t.Close()

	fmt.Printf("%v exists, overwrite? [y/N] ", path)
	line, err := t.ReadString()
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
