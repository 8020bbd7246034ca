package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

var (
	// input supplies secrets when stdin is not a terminal
	input = bufio.NewReader(os.Stdin)

	stdinIsTerminal = func() bool { return term.IsTerminal(int(syscall.Stdin)) }
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "genkey":
		return cmdGenKey(args[1:], out, errOut)
	case "pubkey":
		return cmdPubKey(args[1:], out, errOut)
	case "keyid":
		return cmdKeyID(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "store-password":
		return cmdStorePassword(args[1:], out, errOut)
	case "check-password":
		return cmdCheckPassword(args[1:], out, errOut)
	case "encrypt":
		return cmdEncrypt(args[1:], out, errOut)
	case "decrypt":
		return cmdDecrypt(args[1:], out, errOut)
	case "passphrase":
		return cmdPassphrase(args[1:], out, errOut)
	case "password":
		return cmdPassword(args[1:], out, errOut)
	case "vault":
		return cmdVault(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "cryptopack: password storage, RSA signatures and text encryption")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cryptopack genkey [-bits 2048] [-mldsa] [-out pk.json | -]")
	fmt.Fprintln(w, "  cryptopack pubkey -key <file>")
	fmt.Fprintln(w, "  cryptopack keyid -key <file>")
	fmt.Fprintln(w, "  cryptopack sign -key <file> (-data <text> | -file <path>)")
	fmt.Fprintln(w, "  cryptopack verify -key <file> -sig <hex> (-data <text> | -file <path>)")
	fmt.Fprintln(w, "  cryptopack hash (-data <text> | -file <path>)")
	fmt.Fprintln(w, "  cryptopack store-password [-password <pw>]")
	fmt.Fprintln(w, "  cryptopack check-password -stored <iter;salt;key> [-password <pw>]")
	fmt.Fprintln(w, "  cryptopack encrypt -data <text> [-password <pw> | -pubkey <file>]")
	fmt.Fprintln(w, "  cryptopack decrypt -data <iv;ct> [-password <pw> | -pubkey <file>]")
	fmt.Fprintln(w, "  cryptopack passphrase [-bits 128]")
	fmt.Fprintln(w, "  cryptopack password [-length 20]")
	fmt.Fprintln(w, "  cryptopack vault [-config <file>] [-db <path>] <subcommand> ...")
	fmt.Fprintln(w, "      subcommands: register, login, passwd, rmuser, users, newkey, keys,")
	fmt.Fprintln(w, "                   pubkey, sign, verify, rmkey, audit, stats")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - omitted passwords and passphrases are prompted for without echo")
	fmt.Fprintln(w, "  - -data text is signed and hashed as UTF-16LE; -file bytes are used as is")
	fmt.Fprintln(w, "  - verify and check-password exit 1 when the check fails")
}

// secretOrPrompt returns value when set, otherwise reads a secret from the
// terminal without echo, or a line from stdin when it is not a terminal.
func secretOrPrompt(value, prompt string, errOut io.Writer) (string, error) {
	if value != "" {
		return value, nil
	}
	if stdinIsTerminal() {
		fmt.Fprint(errOut, prompt)
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(errOut) // Add a newline after password input
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(input)
}

// readLine reads one line and strips the line ending
func readLine(reader *bufio.Reader) (string, error) {
	text, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && text != "") {
		return "", fmt.Errorf("no input: %w", err)
	}
	return strings.TrimRight(text, "\r\n"), nil
}

// dataOrFile returns the bytes to sign or hash and whether they came from
// -data text, which is encoded as UTF-16LE by the caller
func dataOrFile(data, file string) (text string, raw []byte, isText bool, err error) {
	switch {
	case data != "" && file != "":
		return "", nil, false, errors.New("use only one of -data and -file")
	case file != "":
		raw, err = os.ReadFile(file)
		if err != nil {
			return "", nil, false, err
		}
		return "", raw, false, nil
	default:
		return data, nil, true, nil
	}
}
