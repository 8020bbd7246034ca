package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/loganmanery/cryptopack/pkg/generator"
	"github.com/loganmanery/cryptopack/pkg/passwords"
	"github.com/loganmanery/cryptopack/pkg/symmetric"
)

func cmdStorePassword(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store-password", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var password string
	fs.StringVar(&password, "password", "", "Password to store (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	password, err := secretOrPrompt(password, "Password: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read password: %v\n", err)
		return 1
	}

	stored, err := passwords.FromPlainText(password)
	if err != nil {
		fmt.Fprintf(errOut, "store password: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, stored.String())
	return 0
}

func cmdCheckPassword(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("check-password", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var storedText, password string
	fs.StringVar(&storedText, "stored", "", "Stored password \"iterations;salt;key\"")
	fs.StringVar(&password, "password", "", "Candidate password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if storedText == "" {
		fmt.Fprintln(errOut, "usage: cryptopack check-password -stored <iter;salt;key> [-password <pw>]")
		return 2
	}

	stored, err := passwords.Parse(storedText)
	if err != nil {
		fmt.Fprintf(errOut, "invalid stored password: %v\n", err)
		return 2
	}
	password, err = secretOrPrompt(password, "Password: ", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "read password: %v\n", err)
		return 1
	}
	return printCheck(out, stored.Check(password), "match", "no match")
}

func cmdEncrypt(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("encrypt", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var data, password, pubkey string
	fs.StringVar(&data, "data", "", "Text to encrypt")
	fs.StringVar(&password, "password", "", "Password (prompted when omitted)")
	fs.StringVar(&pubkey, "pubkey", "", "Derive the password from this public key file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	password, err := codecPassword(password, pubkey, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "password: %v\n", err)
		return 1
	}

	encoded, err := symmetric.Encrypt(data, password)
	if err != nil {
		fmt.Fprintf(errOut, "encrypt: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, encoded)
	return 0
}

func cmdDecrypt(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var data, password, pubkey string
	fs.StringVar(&data, "data", "", "Ciphertext \"hex(iv);hex(ct)\"")
	fs.StringVar(&password, "password", "", "Password (prompted when omitted)")
	fs.StringVar(&pubkey, "pubkey", "", "Derive the password from this public key file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if data == "" {
		fmt.Fprintln(errOut, "usage: cryptopack decrypt -data <iv;ct> [-password <pw> | -pubkey <file>]")
		return 2
	}

	password, err := codecPassword(password, pubkey, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "password: %v\n", err)
		return 1
	}

	plain, err := symmetric.Decrypt(data, password)
	if err != nil {
		fmt.Fprintf(errOut, "decrypt: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, plain)
	return 0
}

func cmdPassphrase(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("passphrase", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var bits int
	fs.IntVar(&bits, "bits", generator.DefaultPassphraseBits, "Entropy in bits (128..256, multiple of 32)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	phrase, err := generator.Passphrase(bits)
	if err != nil {
		fmt.Fprintf(errOut, "passphrase: %v\n", err)
		if errors.Is(err, generator.ErrInvalidEntropy) {
			return 2
		}
		return 1
	}
	_, _ = fmt.Fprintln(out, phrase)
	return 0
}

func cmdPassword(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("password", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var length int
	fs.IntVar(&length, "length", generator.DefaultLength, "Password length")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	pw, err := generator.Password(length)
	if err != nil {
		fmt.Fprintf(errOut, "password: %v\n", err)
		if errors.Is(err, generator.ErrInvalidLength) {
			return 2
		}
		return 1
	}
	_, _ = fmt.Fprintln(out, pw)
	return 0
}

// codecPassword resolves the symmetric codec password from -pubkey, -password or a prompt
func codecPassword(password, pubkeyPath string, errOut io.Writer) (string, error) {
	if pubkeyPath != "" {
		if password != "" {
			return "", errors.New("use only one of -password and -pubkey")
		}
		data, err := os.ReadFile(pubkeyPath)
		if err != nil {
			return "", err
		}
		return symmetric.PasswordFromPublicKey(data)
	}
	return secretOrPrompt(password, "Password: ", errOut)
}
