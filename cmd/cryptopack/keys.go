package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/loganmanery/cryptopack/internal/textenc"
	"github.com/loganmanery/cryptopack/pkg/hash"
	"github.com/loganmanery/cryptopack/pkg/signatures"
)

// defaultKeyFile is where genkey writes a new private key
const defaultKeyFile = "pk.json"

func cmdGenKey(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var bits int
	var mldsa bool
	var outPath string
	fs.IntVar(&bits, "bits", signatures.DefaultKeyBits, "RSA modulus size")
	fs.BoolVar(&mldsa, "mldsa", false, "Generate an ML-DSA-65 key instead of RSA")
	fs.StringVar(&outPath, "out", defaultKeyFile, "Private key file, written with mode 0600; \"-\" prints to stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var (
		privJSON []byte
		id       string
		err      error
	)
	if mldsa {
		var key signatures.MLDSAPrivateKey
		key, err = signatures.GenerateMLDSAKey()
		if err == nil {
			privJSON, err = json.Marshal(key)
		}
	} else {
		var key signatures.PrivateKey
		key, err = signatures.GeneratePrivateKeyBits(bits)
		if err == nil {
			privJSON, err = json.Marshal(key)
			id = signatures.KeyID(key.Public())
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "generate key: %v\n", err)
		return 1
	}
	defer clear(privJSON)

	if outPath == "-" {
		_, _ = fmt.Fprintln(out, string(privJSON))
		return 0
	}
	if err := os.WriteFile(outPath, privJSON, 0o600); err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	if id != "" {
		_, _ = fmt.Fprintln(out, id)
	}
	return 0
}

func cmdPubKey(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("pubkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "Private or public key file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if keyPath == "" {
		fmt.Fprintln(errOut, "usage: cryptopack pubkey -key <file>")
		return 2
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		fmt.Fprintf(errOut, "read key: %v\n", err)
		return 1
	}

	var pub interface{}
	if isMLDSAKey(data) {
		pub, err = signatures.ParseMLDSAPublicKey(data)
	} else {
		pub, err = signatures.ParsePublicKey(data)
	}
	if err != nil {
		fmt.Fprintf(errOut, "invalid key: %v\n", err)
		return 1
	}

	b, err := json.Marshal(pub)
	if err != nil {
		fmt.Fprintf(errOut, "encode key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, string(b))
	return 0
}

func cmdKeyID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("keyid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyPath string
	fs.StringVar(&keyPath, "key", "", "RSA private or public key file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if keyPath == "" {
		fmt.Fprintln(errOut, "usage: cryptopack keyid -key <file>")
		return 2
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		fmt.Fprintf(errOut, "read key: %v\n", err)
		return 1
	}
	pub, err := signatures.ParsePublicKey(data)
	if err != nil {
		fmt.Fprintf(errOut, "invalid key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, signatures.KeyID(pub))
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyPath, data, file string
	fs.StringVar(&keyPath, "key", "", "Private key file")
	fs.StringVar(&data, "data", "", "Text to sign (UTF-16LE)")
	fs.StringVar(&file, "file", "", "File whose bytes are signed")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if keyPath == "" {
		fmt.Fprintln(errOut, "usage: cryptopack sign -key <file> (-data <text> | -file <path>)")
		return 2
	}

	text, raw, isText, err := dataOrFile(data, file)
	if err != nil {
		fmt.Fprintf(errOut, "input: %v\n", err)
		return 2
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		fmt.Fprintf(errOut, "read key: %v\n", err)
		return 1
	}
	defer clear(keyData)

	var sig string
	if isMLDSAKey(keyData) {
		var key signatures.MLDSAPrivateKey
		key, err = signatures.ParseMLDSAPrivateKey(keyData)
		if err == nil {
			if isText {
				raw = textenc.UTF16LE(text)
			}
			sig, err = signatures.SignMLDSA(raw, key)
		}
	} else {
		var key signatures.PrivateKey
		key, err = signatures.ParsePrivateKey(keyData)
		if err == nil {
			if isText {
				sig, err = signatures.SignString(text, key)
			} else {
				sig, err = signatures.Sign(raw, key)
			}
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, sig)
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyPath, sig, data, file string
	fs.StringVar(&keyPath, "key", "", "Public or private key file")
	fs.StringVar(&sig, "sig", "", "Hex signature")
	fs.StringVar(&data, "data", "", "Signed text (UTF-16LE)")
	fs.StringVar(&file, "file", "", "Signed file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if keyPath == "" || sig == "" {
		fmt.Fprintln(errOut, "usage: cryptopack verify -key <file> -sig <hex> (-data <text> | -file <path>)")
		return 2
	}

	text, raw, isText, err := dataOrFile(data, file)
	if err != nil {
		fmt.Fprintf(errOut, "input: %v\n", err)
		return 2
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		fmt.Fprintf(errOut, "read key: %v\n", err)
		return 1
	}

	var ok bool
	if isMLDSAKey(keyData) {
		var pub signatures.MLDSAPublicKey
		pub, err = signatures.ParseMLDSAPublicKey(keyData)
		if err == nil {
			if isText {
				raw = textenc.UTF16LE(text)
			}
			ok = signatures.VerifyMLDSA(raw, sig, pub)
		}
	} else {
		var pub signatures.PublicKey
		pub, err = signatures.ParsePublicKey(keyData)
		if err == nil {
			if isText {
				ok = signatures.VerifyString(text, sig, pub)
			} else {
				ok = signatures.Verify(raw, sig, pub)
			}
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "invalid key: %v\n", err)
		return 1
	}
	return printCheck(out, ok, "valid", "invalid")
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var data, file string
	fs.StringVar(&data, "data", "", "Text to hash (UTF-16LE)")
	fs.StringVar(&file, "file", "", "File to hash")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text, raw, isText, err := dataOrFile(data, file)
	if err != nil {
		fmt.Fprintf(errOut, "input: %v\n", err)
		return 2
	}
	if isText {
		_, _ = fmt.Fprintln(out, hash.SHA256String(text))
	} else {
		_, _ = fmt.Fprintln(out, hash.SHA256(raw))
	}
	return 0
}

// isMLDSAKey reports whether a key file carries the ML-DSA algorithm tag
func isMLDSAKey(data []byte) bool {
	var tagged struct {
		Algorithm string `json:"Algorithm"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return false
	}
	return tagged.Algorithm == signatures.MLDSAAlgorithm
}

// printCheck prints the outcome of a check and maps it to an exit code
func printCheck(out io.Writer, ok bool, yes, no string) int {
	if ok {
		_, _ = fmt.Fprintln(out, yes)
		return 0
	}
	_, _ = fmt.Fprintln(out, no)
	return 1
}
